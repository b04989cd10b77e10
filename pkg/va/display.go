package va

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// Display is an initialized libva display. Objects created from it keep a
// reference and must be destroyed before Close.
type Display struct {
	drv Driver
	log logging.Logger

	major, minor int
	vendor       string

	mu     sync.Mutex
	closed bool
}

// NewDisplay initializes drv. A nil logger discards records.
func NewDisplay(drv Driver, log logging.Logger) (*Display, error) {
	if drv == nil {
		return nil, errors.New("libva-go/va: nil driver")
	}
	if log == nil {
		log = logging.Discard()
	}
	major, minor, err := drv.Initialize()
	if err != nil {
		return nil, err
	}
	d := &Display{drv: drv, log: log, major: major, minor: minor, vendor: drv.Vendor()}
	d.log.Debug(context.Background(), "display initialized", "version", d.Version(), "vendor", d.vendor)
	return d, nil
}

// Version returns the libva API version reported at initialization.
func (d *Display) Version() string {
	return fmt.Sprintf("%d.%d", d.major, d.minor)
}

// Vendor returns the driver vendor string.
func (d *Display) Vendor() string { return d.vendor }

// Driver returns the driver backing the display.
func (d *Display) Driver() Driver { return d.drv }

// Close terminates the display. Closing twice is a no-op.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.drv.Terminate()
}

// Config is a decoding or encoding configuration.
type Config struct {
	d  *Display
	id ConfigID
}

// CreateConfig creates a configuration for profile and entrypoint.
func (d *Display) CreateConfig(profile Profile, entrypoint Entrypoint) (*Config, error) {
	id, err := d.drv.CreateConfig(profile, entrypoint)
	if err != nil {
		return nil, err
	}
	return &Config{d: d, id: id}, nil
}

func (c *Config) ID() ConfigID { return c.id }

func (c *Config) Destroy() error { return c.d.drv.DestroyConfig(c.id) }

// Surface is a render target.
type Surface struct {
	d      *Display
	id     SurfaceID
	format uint32
	res    Resolution
}

// CreateSurfaces allocates n surfaces of the given render target format.
func (d *Display) CreateSurfaces(format uint32, res Resolution, n int) ([]*Surface, error) {
	if n <= 0 {
		return nil, fmt.Errorf("libva-go/va: invalid surface count %d", n)
	}
	ids, err := d.drv.CreateSurfaces(format, res, n)
	if err != nil {
		return nil, err
	}
	out := make([]*Surface, len(ids))
	for i, id := range ids {
		out[i] = &Surface{d: d, id: id, format: format, res: res}
	}
	return out, nil
}

func (s *Surface) ID() SurfaceID { return s.id }

func (s *Surface) Format() uint32 { return s.format }

func (s *Surface) Resolution() Resolution { return s.res }

// Sync blocks until all pending operations on the surface have completed.
func (s *Surface) Sync() error { return s.d.drv.SyncSurface(s.id) }

// Destroy releases the surface.
func (s *Surface) Destroy() error { return s.d.drv.DestroySurfaces([]SurfaceID{s.id}) }

// Context is a decoding context bound to a configuration and its render
// targets.
type Context struct {
	d  *Display
	id ContextID
}

// CreateContext creates a context over targets.
func (d *Display) CreateContext(cfg *Config, res Resolution, progressive bool, targets []*Surface) (*Context, error) {
	ids := make([]SurfaceID, len(targets))
	for i, s := range targets {
		ids[i] = s.id
	}
	id, err := d.drv.CreateContext(cfg.id, res, progressive, ids)
	if err != nil {
		return nil, err
	}
	return &Context{d: d, id: id}, nil
}

func (c *Context) ID() ContextID { return c.id }

func (c *Context) Display() *Display { return c.d }

func (c *Context) Destroy() error { return c.d.drv.DestroyContext(c.id) }

// Buffer is a parameter or data buffer attached to a context.
type Buffer struct {
	d   *Display
	id  BufferID
	typ BufferType
}

// CreateBuffer uploads data into a new buffer of type typ.
func (c *Context) CreateBuffer(typ BufferType, data []byte) (*Buffer, error) {
	id, err := c.d.drv.CreateBuffer(c.id, typ, data)
	if err != nil {
		return nil, err
	}
	return &Buffer{d: c.d, id: id, typ: typ}, nil
}

func (b *Buffer) ID() BufferID { return b.id }

func (b *Buffer) Type() BufferType { return b.typ }

func (b *Buffer) Destroy() error { return b.d.drv.DestroyBuffer(b.id) }
