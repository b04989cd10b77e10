package va

import "errors"

// Image is a CPU-visible view of a surface, derived from it or copied out
// of it.
type Image struct {
	d       *Display
	info    ImageInfo
	derived bool
	display Resolution
	data    []byte
}

func newImage(d *Display, info ImageInfo, derived bool, display Resolution) *Image {
	return &Image{d: d, info: info, derived: derived, display: display}
}

func (i *Image) Info() ImageInfo { return i.info }

// Derived reports whether the image shares memory with its surface.
func (i *Image) Derived() bool { return i.derived }

// DisplayResolution is the visible part of the coded image.
func (i *Image) DisplayResolution() Resolution { return i.display }

// Map returns the image data. The slice is valid until Unmap or Close.
func (i *Image) Map() ([]byte, error) {
	if i.data != nil {
		return i.data, nil
	}
	data, err := i.d.drv.MapBuffer(i.info.Buffer, int(i.info.DataSize))
	if err != nil {
		return nil, err
	}
	i.data = data
	return data, nil
}

// Unmap releases the mapping returned by Map.
func (i *Image) Unmap() error {
	if i.data == nil {
		return nil
	}
	i.data = nil
	return i.d.drv.UnmapBuffer(i.info.Buffer)
}

// Plane returns the bytes of plane n of a mapped image.
func (i *Image) Plane(n int) ([]byte, error) {
	if i.data == nil {
		return nil, errors.New("libva-go/va: image not mapped")
	}
	if n < 0 || uint32(n) >= i.info.NumPlanes || n >= len(i.info.Offsets) {
		return nil, errors.New("libva-go/va: plane out of range")
	}
	start := int(i.info.Offsets[n])
	end := len(i.data)
	if uint32(n+1) < i.info.NumPlanes && n+1 < len(i.info.Offsets) {
		end = int(i.info.Offsets[n+1])
	}
	if start > end || end > len(i.data) {
		return nil, errors.New("libva-go/va: plane exceeds image data")
	}
	return i.data[start:end], nil
}

// Close unmaps and destroys the image.
func (i *Image) Close() error {
	return errors.Join(i.Unmap(), i.d.drv.DestroyImage(i.info.ID))
}
