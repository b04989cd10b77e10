//go:build libva && cgo

package va

/*
#cgo pkg-config: libva libva-drm
#include <va/va.h>

extern void vago_message(void *user_context, const char *message);
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unsafe"

	"github.com/cros-libva/libva-go/pkg/va/internal/raw"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// progressive is VA_PROGRESSIVE.
const progressive = 0x1

type handle uintptr

var (
	mu   sync.Mutex
	next handle = 1
	reg         = map[handle]any{}
)

func put(v any) (handle, unsafe.Pointer) {
	mu.Lock()
	h := next
	next++
	reg[h] = v
	mu.Unlock()
	return h, unsafe.Pointer(uintptr(h))
}

func get(ptr unsafe.Pointer) (any, bool) {
	h := handle(uintptr(ptr))
	mu.Lock()
	v, ok := reg[h]
	mu.Unlock()
	return v, ok
}

func del(h handle) {
	mu.Lock()
	delete(reg, h)
	mu.Unlock()
}

// messageSink forwards libva error or info messages to a logger.
type messageSink struct {
	log     logging.Logger
	isError bool
}

//export vaGoMessage
func vaGoMessage(userContext unsafe.Pointer, message *C.char) {
	v, ok := get(userContext)
	if !ok {
		return
	}
	sink, ok := v.(messageSink)
	if !ok {
		return
	}
	msg := strings.TrimSpace(C.GoString(message))
	if sink.isError {
		sink.log.Error(context.Background(), "libva", "message", msg)
		return
	}
	sink.log.Info(context.Background(), "libva", "message", msg)
}

type libvaDriver struct {
	dpy     raw.VADisplay
	file    *os.File
	handles []handle
}

// OpenDRM opens the DRM render node at path (e.g. /dev/dri/renderD128) and
// initializes a display on it. libva messages are logged to log.
func OpenDRM(path string, log logging.Logger) (*Display, error) {
	if log == nil {
		log = logging.Discard()
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0) // #nosec G304 -- device path chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	dpy := raw.VaGetDisplayDRM(int32(f.Fd()))
	if raw.VaDisplayIsValid(dpy) == 0 {
		_ = f.Close()
		return nil, &StatusError{Op: "vaGetDisplayDRM", Status: StatusInvalidDisplay}
	}
	drv := &libvaDriver{dpy: dpy, file: f}
	drv.routeMessages(log.With("device", path))

	d, err := NewDisplay(drv, log)
	if err != nil {
		_ = drv.release()
		return nil, err
	}
	return d, nil
}

func (d *libvaDriver) routeMessages(log logging.Logger) {
	cb := raw.VAMessageCallback(unsafe.Pointer(C.vago_message))
	errH, errCtx := put(messageSink{log: log, isError: true})
	infoH, infoCtx := put(messageSink{log: log})
	d.handles = append(d.handles, errH, infoH)
	raw.VaSetErrorCallback(d.dpy, cb, errCtx)
	raw.VaSetInfoCallback(d.dpy, cb, infoCtx)
}

func (d *libvaDriver) release() error {
	for _, h := range d.handles {
		del(h)
	}
	d.handles = nil
	return d.file.Close()
}

func cstring(p *int8) string {
	if p == nil {
		return ""
	}
	return C.GoString((*C.char)(unsafe.Pointer(p)))
}

func check(op string, st raw.VAStatus) error {
	if st == raw.VA_STATUS_SUCCESS {
		return nil
	}
	return &StatusError{Op: op, Status: Status(uint32(st)), Message: cstring(raw.VaErrorStr(st))}
}

func (d *libvaDriver) Initialize() (int, int, error) {
	var major, minor int32
	if err := check("vaInitialize", raw.VaInitialize(d.dpy, &major, &minor)); err != nil {
		return 0, 0, err
	}
	return int(major), int(minor), nil
}

func (d *libvaDriver) Terminate() error {
	err := check("vaTerminate", raw.VaTerminate(d.dpy))
	return errors.Join(err, d.release())
}

func (d *libvaDriver) Vendor() string {
	return cstring(raw.VaQueryVendorString(d.dpy))
}

func (d *libvaDriver) CreateConfig(profile Profile, entrypoint Entrypoint) (ConfigID, error) {
	var id raw.VAConfigID
	st := raw.VaCreateConfig(d.dpy, raw.VAProfile(profile), raw.VAEntrypoint(entrypoint), nil, 0, &id)
	if err := check("vaCreateConfig", st); err != nil {
		return 0, err
	}
	return ConfigID(id), nil
}

func (d *libvaDriver) DestroyConfig(id ConfigID) error {
	return check("vaDestroyConfig", raw.VaDestroyConfig(d.dpy, raw.VAConfigID(id)))
}

func (d *libvaDriver) CreateSurfaces(format uint32, res Resolution, n int) ([]SurfaceID, error) {
	ids := make([]raw.VASurfaceID, n)
	st := raw.VaCreateSurfaces(d.dpy, format, res.Width, res.Height, &ids[0], uint32(n), nil, 0)
	if err := check("vaCreateSurfaces", st); err != nil {
		return nil, err
	}
	out := make([]SurfaceID, n)
	for i, id := range ids {
		out[i] = SurfaceID(id)
	}
	return out, nil
}

func (d *libvaDriver) DestroySurfaces(ids []SurfaceID) error {
	if len(ids) == 0 {
		return nil
	}
	rids := surfaceIDs(ids)
	return check("vaDestroySurfaces", raw.VaDestroySurfaces(d.dpy, &rids[0], int32(len(rids))))
}

func surfaceIDs(ids []SurfaceID) []raw.VASurfaceID {
	out := make([]raw.VASurfaceID, len(ids))
	for i, id := range ids {
		out[i] = raw.VASurfaceID(id)
	}
	return out
}

func (d *libvaDriver) CreateContext(config ConfigID, res Resolution, prog bool, targets []SurfaceID) (ContextID, error) {
	var flag int32
	if prog {
		flag = progressive
	}
	var first *raw.VASurfaceID
	rids := surfaceIDs(targets)
	if len(rids) > 0 {
		first = &rids[0]
	}
	var id raw.VAContextID
	st := raw.VaCreateContext(d.dpy, raw.VAConfigID(config), int32(res.Width), int32(res.Height), flag, first, int32(len(rids)), &id)
	if err := check("vaCreateContext", st); err != nil {
		return 0, err
	}
	return ContextID(id), nil
}

func (d *libvaDriver) DestroyContext(id ContextID) error {
	return check("vaDestroyContext", raw.VaDestroyContext(d.dpy, raw.VAContextID(id)))
}

func (d *libvaDriver) CreateBuffer(ctx ContextID, typ BufferType, data []byte) (BufferID, error) {
	var p unsafe.Pointer
	if len(data) > 0 {
		p = unsafe.Pointer(&data[0])
	}
	var id raw.VABufferID
	st := raw.VaCreateBuffer(d.dpy, raw.VAContextID(ctx), raw.VABufferType(typ), uint32(len(data)), 1, p, &id)
	if err := check("vaCreateBuffer", st); err != nil {
		return 0, err
	}
	return BufferID(id), nil
}

func (d *libvaDriver) DestroyBuffer(id BufferID) error {
	return check("vaDestroyBuffer", raw.VaDestroyBuffer(d.dpy, raw.VABufferID(id)))
}

func (d *libvaDriver) MapBuffer(id BufferID, size int) ([]byte, error) {
	var p unsafe.Pointer
	if err := check("vaMapBuffer", raw.VaMapBuffer(d.dpy, raw.VABufferID(id), &p)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), size), nil
}

func (d *libvaDriver) UnmapBuffer(id BufferID) error {
	return check("vaUnmapBuffer", raw.VaUnmapBuffer(d.dpy, raw.VABufferID(id)))
}

func (d *libvaDriver) BeginPicture(ctx ContextID, target SurfaceID) error {
	return check("vaBeginPicture", raw.VaBeginPicture(d.dpy, raw.VAContextID(ctx), raw.VASurfaceID(target)))
}

func (d *libvaDriver) RenderPicture(ctx ContextID, buffers []BufferID) error {
	ids := make([]raw.VABufferID, len(buffers))
	for i, b := range buffers {
		ids[i] = raw.VABufferID(b)
	}
	var first *raw.VABufferID
	if len(ids) > 0 {
		first = &ids[0]
	}
	return check("vaRenderPicture", raw.VaRenderPicture(d.dpy, raw.VAContextID(ctx), first, int32(len(ids))))
}

func (d *libvaDriver) EndPicture(ctx ContextID) error {
	return check("vaEndPicture", raw.VaEndPicture(d.dpy, raw.VAContextID(ctx)))
}

func (d *libvaDriver) SyncSurface(id SurfaceID) error {
	return check("vaSyncSurface", raw.VaSyncSurface(d.dpy, raw.VASurfaceID(id)))
}

func (d *libvaDriver) CreateImage(format ImageFormat, res Resolution) (ImageInfo, error) {
	f := raw.VAImageFormat{
		Fourcc:         format.FourCC,
		Byte_order:     format.ByteOrder,
		Bits_per_pixel: format.BitsPerPixel,
		Depth:          format.Depth,
		Red_mask:       format.RedMask,
		Green_mask:     format.GreenMask,
		Blue_mask:      format.BlueMask,
		Alpha_mask:     format.AlphaMask,
	}
	var img raw.VAImage
	if err := check("vaCreateImage", raw.VaCreateImage(d.dpy, &f, int32(res.Width), int32(res.Height), &img)); err != nil {
		return ImageInfo{}, err
	}
	return imageInfo(img), nil
}

func (d *libvaDriver) DeriveImage(surface SurfaceID) (ImageInfo, error) {
	var img raw.VAImage
	if err := check("vaDeriveImage", raw.VaDeriveImage(d.dpy, raw.VASurfaceID(surface), &img)); err != nil {
		return ImageInfo{}, err
	}
	return imageInfo(img), nil
}

func (d *libvaDriver) GetImage(surface SurfaceID, res Resolution, image ImageID) error {
	st := raw.VaGetImage(d.dpy, raw.VASurfaceID(surface), 0, 0, res.Width, res.Height, raw.VAImageID(image))
	return check("vaGetImage", st)
}

func (d *libvaDriver) DestroyImage(id ImageID) error {
	return check("vaDestroyImage", raw.VaDestroyImage(d.dpy, raw.VAImageID(id)))
}

func imageInfo(img raw.VAImage) ImageInfo {
	return ImageInfo{
		ID: ImageID(img.Image_id),
		Format: ImageFormat{
			FourCC:       img.Format.Fourcc,
			ByteOrder:    img.Format.Byte_order,
			BitsPerPixel: img.Format.Bits_per_pixel,
			Depth:        img.Format.Depth,
			RedMask:      img.Format.Red_mask,
			GreenMask:    img.Format.Green_mask,
			BlueMask:     img.Format.Blue_mask,
			AlphaMask:    img.Format.Alpha_mask,
		},
		Buffer:    BufferID(img.Buf),
		Width:     img.Width,
		Height:    img.Height,
		DataSize:  img.Data_size,
		NumPlanes: img.Num_planes,
		Pitches:   img.Pitches,
		Offsets:   img.Offsets,
	}
}
