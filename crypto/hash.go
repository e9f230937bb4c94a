package crypto

import "golang.org/x/crypto/sha3"

// HashSize is the size in bytes of a Keccak256 digest.
const HashSize = 32

func Keccak256(bytes []byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(bytes)
	return hasher.Sum(nil)
}
