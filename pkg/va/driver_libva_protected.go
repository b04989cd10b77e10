//go:build libva && cgo && va_protected_content

package va

import (
	"unsafe"

	"github.com/cros-libva/libva-go/pkg/va/internal/raw"
)

// The protected content constants and layouts must match the headers the
// bindings were generated from; a mismatch fails to compile.
func _() {
	var x [1]struct{}
	_ = x[CipherAES-raw.VA_PC_CIPHER_AES]
	_ = x[BlockSize128-raw.VA_PC_BLOCK_SIZE_128]
	_ = x[CipherModeCBC-raw.VA_PC_CIPHER_MODE_CBC]
	_ = x[CipherModeCTR-raw.VA_PC_CIPHER_MODE_CTR]
	_ = x[SampleTypeFullSample-raw.VA_PC_SAMPLE_TYPE_FULLSAMPLE]
	_ = x[SampleTypeSubSample-raw.VA_PC_SAMPLE_TYPE_SUBSAMPLE]
	_ = x[TEEFuncPassThroughNone-raw.VA_TEE_EXEC_TEE_FUNCID_PASS_THROUGH_NONE]
	_ = x[TEEFuncHWUpdate-raw.VA_TEE_EXEC_TEE_FUNCID_HW_UPDATE]
	_ = x[EntrypointProtectedTEEComm-raw.VAEntrypointProtectedTEEComm]
	_ = x[unsafe.Sizeof(raw.VAEncryptionSegmentInfo{})-EncryptionSegmentSize]
}
