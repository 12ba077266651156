package common

import (
	"crypto/sha256"
	"fmt"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// ChainHash extends a hash chain: it returns the SHA256 hash of the
// concatenation of prev and the hash of data.
func ChainHash(prev []byte, data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(prev)
	hasher.Write(SHA256(data))
	return hasher.Sum(nil)
}

//EncodeToString returns the UPPERCASE string representation of hexBytes with
//the 0X prefix
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}
