package va

import (
	"context"
	"errors"
	"sync"
)

// A picture moves through New, Begin, Render, End and Sync. Each transition
// returns the next state and leaves the previous value consumed; calling a
// consumed picture returns ErrConsumed. A failed transition leaves the
// picture in its current state.

// sharedSurface counts the pictures referencing one surface.
type sharedSurface struct {
	mu   sync.Mutex
	s    *Surface
	refs int
}

type pictureInner struct {
	timestamp uint64
	ctx       *Context
	buffers   []*Buffer
	surface   *sharedSurface
}

func (in *pictureInner) drv() Driver { return in.ctx.d.drv }

// destroyBuffers releases the buffers attached to the picture.
func (in *pictureInner) destroyBuffers() error {
	var errs []error
	for _, b := range in.buffers {
		if err := b.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	in.buffers = nil
	return errors.Join(errs...)
}

type picture struct {
	inner *pictureInner
}

func (p *picture) state() (*pictureInner, error) {
	if p == nil || p.inner == nil {
		return nil, ErrConsumed
	}
	return p.inner, nil
}

// move hands the inner state to the next picture state.
func (p *picture) move() picture {
	in := p.inner
	p.inner = nil
	return picture{inner: in}
}

// Timestamp returns the timestamp the picture was created with, or 0 once
// consumed.
func (p *picture) Timestamp() uint64 {
	if p.inner == nil {
		return 0
	}
	return p.inner.timestamp
}

// Surface returns the render target, or nil once consumed.
func (p *picture) Surface() *Surface {
	if p.inner == nil {
		return nil
	}
	return p.inner.surface.s
}

// Close destroys the picture's buffers and drops its surface reference
// without returning the surface. Closing a consumed picture is a no-op.
func (p *picture) Close() error {
	in := p.inner
	if in == nil {
		return nil
	}
	p.inner = nil
	in.surface.mu.Lock()
	in.surface.refs--
	in.surface.mu.Unlock()
	return in.destroyBuffers()
}

func (p *picture) takeSurface() (*Surface, error) {
	in, err := p.state()
	if err != nil {
		return nil, err
	}
	shared := in.surface
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.refs > 1 {
		return nil, ErrSurfaceShared
	}
	shared.refs = 0
	p.inner = nil
	if err := in.destroyBuffers(); err != nil {
		in.ctx.d.log.Warn(context.Background(), "destroy picture buffers", "surface", shared.s.id, "error", err)
	}
	return shared.s, nil
}

// Reclaimable is a picture state whose surface can be taken back: New and
// Sync.
type Reclaimable interface {
	TakeSurface() (*Surface, error)
	shared() (*pictureInner, error)
}

// PictureNew is a picture that has not been submitted yet.
type PictureNew struct{ picture }

// PictureBegin is a picture after vaBeginPicture.
type PictureBegin struct{ picture }

// PictureRender is a picture after vaRenderPicture.
type PictureRender struct{ picture }

// PictureEnd is a picture after vaEndPicture, still being decoded.
type PictureEnd struct{ picture }

// PictureSync is a decoded picture whose surface content can be read.
type PictureSync struct{ picture }

// NewPicture creates a picture decoding into surface with ctx.
func NewPicture(timestamp uint64, ctx *Context, surface *Surface) *PictureNew {
	return &PictureNew{picture{inner: &pictureInner{
		timestamp: timestamp,
		ctx:       ctx,
		surface:   &sharedSurface{s: surface, refs: 1},
	}}}
}

// NewPictureFromSameSurface creates a picture decoding into the surface of
// from, e.g. the second field of an interlaced frame. Neither picture can
// reclaim the surface until the other is closed.
func NewPictureFromSameSurface(timestamp uint64, from Reclaimable) (*PictureNew, error) {
	in, err := from.shared()
	if err != nil {
		return nil, err
	}
	in.surface.mu.Lock()
	in.surface.refs++
	in.surface.mu.Unlock()
	return &PictureNew{picture{inner: &pictureInner{
		timestamp: timestamp,
		ctx:       in.ctx,
		surface:   in.surface,
	}}}, nil
}

func (p *PictureNew) shared() (*pictureInner, error) { return p.state() }

// AddBuffer attaches b to the picture. The picture destroys its buffers when
// it is closed or its surface is taken.
func (p *PictureNew) AddBuffer(b *Buffer) error {
	in, err := p.state()
	if err != nil {
		return err
	}
	in.buffers = append(in.buffers, b)
	return nil
}

// Begin starts decoding into the picture's surface.
func (p *PictureNew) Begin() (*PictureBegin, error) {
	in, err := p.state()
	if err != nil {
		return nil, err
	}
	if err := in.drv().BeginPicture(in.ctx.id, in.surface.s.id); err != nil {
		return nil, err
	}
	return &PictureBegin{p.move()}, nil
}

// TakeSurface consumes the picture and returns its surface. It fails with
// ErrSurfaceShared while another picture references the surface.
func (p *PictureNew) TakeSurface() (*Surface, error) { return p.takeSurface() }

// Render submits the picture's buffers.
func (p *PictureBegin) Render() (*PictureRender, error) {
	in, err := p.state()
	if err != nil {
		return nil, err
	}
	ids := make([]BufferID, len(in.buffers))
	for i, b := range in.buffers {
		ids[i] = b.id
	}
	if err := in.drv().RenderPicture(in.ctx.id, ids); err != nil {
		return nil, err
	}
	return &PictureRender{p.move()}, nil
}

// End ends the submission. Decoding continues asynchronously.
func (p *PictureRender) End() (*PictureEnd, error) {
	in, err := p.state()
	if err != nil {
		return nil, err
	}
	if err := in.drv().EndPicture(in.ctx.id); err != nil {
		return nil, err
	}
	return &PictureEnd{p.move()}, nil
}

// Sync waits for decoding to complete. On failure p stays usable, so the
// caller can retry or close it.
func (p *PictureEnd) Sync() (*PictureSync, error) {
	in, err := p.state()
	if err != nil {
		return nil, err
	}
	if err := in.surface.s.Sync(); err != nil {
		return nil, err
	}
	return &PictureSync{p.move()}, nil
}

func (p *PictureSync) shared() (*pictureInner, error) { return p.state() }

// TakeSurface consumes the picture and returns its surface. It fails with
// ErrSurfaceShared while another picture references the surface.
func (p *PictureSync) TakeSurface() (*Surface, error) { return p.takeSurface() }

// DeriveImage maps the surface content without copying. Not every driver
// and surface format supports it; CreateImage is the fallback.
func (p *PictureSync) DeriveImage(display Resolution) (*Image, error) {
	in, err := p.state()
	if err != nil {
		return nil, err
	}
	info, err := in.drv().DeriveImage(in.surface.s.id)
	if err != nil {
		return nil, err
	}
	return newImage(in.ctx.d, info, true, display), nil
}

// CreateImage copies the surface into a new image of the given format and
// coded resolution. The image is destroyed again if the copy fails.
func (p *PictureSync) CreateImage(format ImageFormat, coded, display Resolution) (*Image, error) {
	in, err := p.state()
	if err != nil {
		return nil, err
	}
	drv := in.drv()
	info, err := drv.CreateImage(format, coded)
	if err != nil {
		return nil, err
	}
	if err := drv.GetImage(in.surface.s.id, coded, info.ID); err != nil {
		if derr := drv.DestroyImage(info.ID); derr != nil {
			in.ctx.d.log.Warn(context.Background(), "destroy image", "image", info.ID, "error", derr)
		}
		return nil, err
	}
	return newImage(in.ctx.d, info, false, display), nil
}
