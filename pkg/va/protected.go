//go:build va_protected_content

package va

import (
	"encoding/binary"
	"fmt"
)

// EntrypointProtectedTEEComm is the entrypoint of a protected session that
// talks to the trusted execution environment.
const EntrypointProtectedTEEComm Entrypoint = 0x1000

// Cipher and sample flags of a protected session.
const (
	CipherAES              uint32 = 0x00000002
	BlockSize128           uint32 = 0x00000001
	CipherModeCBC          uint32 = 0x00000002
	CipherModeCTR          uint32 = 0x00000004
	SampleTypeFullSample   uint32 = 0x00000001
	SampleTypeSubSample    uint32 = 0x00000002
	TEEFuncPassThroughNone uint32 = 0x40000000
	TEEFuncHWUpdate        uint32 = 0x40000002
)

// EncryptionSegmentSize is the size of VAEncryptionSegmentInfo.
const EncryptionSegmentSize = 4*4 + 64 + 8*4

// EncryptionSegment describes one encrypted run of a slice data buffer.
type EncryptionSegment struct {
	StartOffset         uint32
	Length              uint32
	PartialAESBlockSize uint32
	InitByteLength      uint32
	// IV is the CBC initialization vector or the CTR counter block.
	IV []byte
}

// MarshalBinary encodes the segment in the VAEncryptionSegmentInfo layout.
func (s EncryptionSegment) MarshalBinary() ([]byte, error) {
	if len(s.IV) > 64 {
		return nil, fmt.Errorf("libva-go/va: IV of %d bytes exceeds 64", len(s.IV))
	}
	if s.PartialAESBlockSize > 16 {
		return nil, fmt.Errorf("libva-go/va: partial AES block of %d bytes", s.PartialAESBlockSize)
	}
	out := make([]byte, EncryptionSegmentSize)
	binary.LittleEndian.PutUint32(out[0:], s.StartOffset)
	binary.LittleEndian.PutUint32(out[4:], s.Length)
	binary.LittleEndian.PutUint32(out[8:], s.PartialAESBlockSize)
	binary.LittleEndian.PutUint32(out[12:], s.InitByteLength)
	copy(out[16:80], s.IV)
	return out, nil
}

// CreateProtectedConfig creates a TEE communication configuration for
// profile.
func (d *Display) CreateProtectedConfig(profile Profile) (*Config, error) {
	return d.CreateConfig(profile, EntrypointProtectedTEEComm)
}
