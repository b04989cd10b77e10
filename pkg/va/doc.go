// Package va is a typed layer over the generated libva bindings.
//
// Decoding a frame walks a picture through its states, each a distinct type,
// so that calls can only be made in the order libva requires:
//
//	pic := va.NewPicture(ts, ctx, surface)
//	_ = pic.AddBuffer(params)
//	begun, err := pic.Begin()
//	rendered, err := begun.Render()
//	ended, err := rendered.End()
//	synced, err := ended.Sync()
//	img, err := synced.DeriveImage(displayRes)
//
// The surface can be taken back from a new or a synced picture. Build with
// the libva tag (and cgo) to link the libva driver; otherwise OpenDRM
// returns ErrNotBuilt and only caller-supplied Drivers are usable. The
// va_protected_content tag adds the protected content helpers and requires
// bindings generated with that feature enabled.
package va
