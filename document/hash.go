package document

import (
	"fmt"

	"github.com/minio/highwayhash"
)

var key = []byte("0123456789ABCDEF0123456789ABCDEF")

// Hash returns a 64-bit highwayhash of data.
func Hash(data []byte) (uint64, error) {
	h, err := highwayhash.New64(key)
	if err != nil {
		return 0, err
	}
	if _, err = h.Write(data); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// ID derives a stable document id from text.
func ID(text string) (string, error) {
	sum, err := Hash([]byte(text))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("doc-%016x", sum), nil
}
