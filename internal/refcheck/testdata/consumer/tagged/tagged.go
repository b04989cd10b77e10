//go:build va_protected_content

package tagged

import "example.com/consumer/raw"

const Cipher = raw.VA_PC_CIPHER_AES
