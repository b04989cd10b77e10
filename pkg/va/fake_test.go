package va

import "fmt"

// fakeDriver records libva calls and fails the ones listed in fail.
type fakeDriver struct {
	calls  []string
	fail   map[string]Status
	nextID uint32

	rendered         []BufferID
	destroyedBuffers []BufferID
	destroyedImages  []ImageID
	entrypoints      []Entrypoint
	mapped           map[BufferID][]byte
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fail: map[string]Status{}, mapped: map[BufferID][]byte{}}
}

func (f *fakeDriver) call(op string) error {
	f.calls = append(f.calls, op)
	if st, ok := f.fail[op]; ok {
		return &StatusError{Op: op, Status: st}
	}
	return nil
}

func (f *fakeDriver) id() uint32 {
	f.nextID++
	return f.nextID
}

func (f *fakeDriver) Initialize() (int, int, error) {
	if err := f.call("vaInitialize"); err != nil {
		return 0, 0, err
	}
	return 1, 20, nil
}

func (f *fakeDriver) Terminate() error { return f.call("vaTerminate") }

func (f *fakeDriver) Vendor() string { return "fake driver" }

func (f *fakeDriver) CreateConfig(profile Profile, entrypoint Entrypoint) (ConfigID, error) {
	f.entrypoints = append(f.entrypoints, entrypoint)
	if err := f.call("vaCreateConfig"); err != nil {
		return 0, err
	}
	return ConfigID(f.id()), nil
}

func (f *fakeDriver) DestroyConfig(ConfigID) error { return f.call("vaDestroyConfig") }

func (f *fakeDriver) CreateSurfaces(format uint32, res Resolution, n int) ([]SurfaceID, error) {
	if err := f.call("vaCreateSurfaces"); err != nil {
		return nil, err
	}
	ids := make([]SurfaceID, n)
	for i := range ids {
		ids[i] = SurfaceID(f.id())
	}
	return ids, nil
}

func (f *fakeDriver) DestroySurfaces([]SurfaceID) error { return f.call("vaDestroySurfaces") }

func (f *fakeDriver) CreateContext(ConfigID, Resolution, bool, []SurfaceID) (ContextID, error) {
	if err := f.call("vaCreateContext"); err != nil {
		return 0, err
	}
	return ContextID(f.id()), nil
}

func (f *fakeDriver) DestroyContext(ContextID) error { return f.call("vaDestroyContext") }

func (f *fakeDriver) CreateBuffer(ctx ContextID, typ BufferType, data []byte) (BufferID, error) {
	if err := f.call("vaCreateBuffer"); err != nil {
		return 0, err
	}
	return BufferID(f.id()), nil
}

func (f *fakeDriver) DestroyBuffer(id BufferID) error {
	f.destroyedBuffers = append(f.destroyedBuffers, id)
	return f.call("vaDestroyBuffer")
}

func (f *fakeDriver) MapBuffer(id BufferID, size int) ([]byte, error) {
	if err := f.call("vaMapBuffer"); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	f.mapped[id] = data
	return data, nil
}

func (f *fakeDriver) UnmapBuffer(id BufferID) error {
	if _, ok := f.mapped[id]; !ok {
		return fmt.Errorf("buffer %d not mapped", id)
	}
	delete(f.mapped, id)
	return f.call("vaUnmapBuffer")
}

func (f *fakeDriver) BeginPicture(ContextID, SurfaceID) error { return f.call("vaBeginPicture") }

func (f *fakeDriver) RenderPicture(ctx ContextID, buffers []BufferID) error {
	if err := f.call("vaRenderPicture"); err != nil {
		return err
	}
	f.rendered = append(f.rendered, buffers...)
	return nil
}

func (f *fakeDriver) EndPicture(ContextID) error { return f.call("vaEndPicture") }

func (f *fakeDriver) SyncSurface(SurfaceID) error { return f.call("vaSyncSurface") }

func (f *fakeDriver) image(format ImageFormat, w, h uint16) ImageInfo {
	return ImageInfo{
		ID:        ImageID(f.id()),
		Format:    format,
		Buffer:    BufferID(f.id()),
		Width:     w,
		Height:    h,
		DataSize:  uint32(w) * uint32(h) * 3 / 2,
		NumPlanes: 2,
		Pitches:   [3]uint32{uint32(w), uint32(w)},
		Offsets:   [3]uint32{0, uint32(w) * uint32(h)},
	}
}

func (f *fakeDriver) CreateImage(format ImageFormat, res Resolution) (ImageInfo, error) {
	if err := f.call("vaCreateImage"); err != nil {
		return ImageInfo{}, err
	}
	return f.image(format, uint16(res.Width), uint16(res.Height)), nil
}

func (f *fakeDriver) DeriveImage(SurfaceID) (ImageInfo, error) {
	if err := f.call("vaDeriveImage"); err != nil {
		return ImageInfo{}, err
	}
	return f.image(ImageFormat{FourCC: FourCCNV12}, 16, 16), nil
}

func (f *fakeDriver) GetImage(SurfaceID, Resolution, ImageID) error { return f.call("vaGetImage") }

func (f *fakeDriver) DestroyImage(id ImageID) error {
	f.destroyedImages = append(f.destroyedImages, id)
	return f.call("vaDestroyImage")
}
