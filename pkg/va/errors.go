package va

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBuilt reports that the package was compiled without the libva
	// driver (the libva build tag and cgo are both required).
	ErrNotBuilt = errors.New("libva-go/va: libva driver not built")

	// ErrConsumed is returned by a picture that already moved to its next
	// state or handed its surface back.
	ErrConsumed = errors.New("libva-go/va: picture already consumed")

	// ErrSurfaceShared is returned when a surface is reclaimed while another
	// picture still references it.
	ErrSurfaceShared = errors.New("libva-go/va: surface still shared with another picture")
)

// Status is a VAStatus value.
type Status uint32

const (
	StatusSuccess            Status = 0x00000000
	StatusOperationFailed    Status = 0x00000001
	StatusAllocationFailed   Status = 0x00000002
	StatusInvalidDisplay     Status = 0x00000003
	StatusInvalidConfig      Status = 0x00000004
	StatusInvalidContext     Status = 0x00000005
	StatusInvalidSurface     Status = 0x00000006
	StatusInvalidBuffer      Status = 0x00000007
	StatusInvalidImage       Status = 0x00000008
	StatusUnsupportedProfile Status = 0x0000000c
	StatusSurfaceBusy        Status = 0x00000010
	StatusUnimplemented      Status = 0x00000014
	StatusUnknown            Status = 0xffffffff
)

var statusNames = map[Status]string{
	StatusSuccess:            "VA_STATUS_SUCCESS",
	StatusOperationFailed:    "VA_STATUS_ERROR_OPERATION_FAILED",
	StatusAllocationFailed:   "VA_STATUS_ERROR_ALLOCATION_FAILED",
	StatusInvalidDisplay:     "VA_STATUS_ERROR_INVALID_DISPLAY",
	StatusInvalidConfig:      "VA_STATUS_ERROR_INVALID_CONFIG",
	StatusInvalidContext:     "VA_STATUS_ERROR_INVALID_CONTEXT",
	StatusInvalidSurface:     "VA_STATUS_ERROR_INVALID_SURFACE",
	StatusInvalidBuffer:      "VA_STATUS_ERROR_INVALID_BUFFER",
	StatusInvalidImage:       "VA_STATUS_ERROR_INVALID_IMAGE",
	StatusUnsupportedProfile: "VA_STATUS_ERROR_UNSUPPORTED_PROFILE",
	StatusSurfaceBusy:        "VA_STATUS_ERROR_SURFACE_BUSY",
	StatusUnimplemented:      "VA_STATUS_ERROR_UNIMPLEMENTED",
	StatusUnknown:            "VA_STATUS_ERROR_UNKNOWN",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("VAStatus(%#x)", uint32(s))
}

// StatusError is a failed libva call.
type StatusError struct {
	Op     string
	Status Status
	// Message is the driver's description of Status, when it has one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

// Is matches another *StatusError with the same status, so callers can test
// errors.Is(err, &va.StatusError{Status: va.StatusSurfaceBusy}).
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return t.Status == e.Status && (t.Op == "" || t.Op == e.Op)
}

// Check turns a status returned by op into an error; success is nil.
func Check(op string, st Status) error {
	if st == StatusSuccess {
		return nil
	}
	return &StatusError{Op: op, Status: st}
}

// StatusOf extracts the VAStatus carried by err, or StatusUnknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusUnknown
}
