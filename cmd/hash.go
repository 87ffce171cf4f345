package cmd

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/openwim/wimcore/internal/blobtable"
)

func hashFromHex(s string) (blobtable.Hash, error) {
	var h blobtable.Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid blob digest %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid blob digest %q: wrong length", s)
	}
	copy(h[:], b)
	return h, nil
}

// hashFile computes the SHA-1 digest of the file at path, as required to key
// it into a BlobTable (spec.md §3's "BlobRef... SHA-1 message digest").
func hashFile(path string) (blobtable.Hash, int64, error) {
	var h blobtable.Hash
	f, err := os.Open(path)
	if err != nil {
		return h, 0, err
	}
	defer f.Close()

	sum := sha1.New()
	n, err := io.Copy(sum, f)
	if err != nil {
		return h, 0, err
	}
	copy(h[:], sum.Sum(nil))
	return h, n, nil
}
