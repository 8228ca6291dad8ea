package contentstore

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ValidateCID checks that s decodes as a CIDv0 or CIDv1 string.
func ValidateCID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrInvalidCID
	}
	if _, err := cid.Decode(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCID, err)
	}
	return nil
}

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeCID(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// ShortCID abbreviates long identifiers to first8...last8 for display.
func ShortCID(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "..." + s[len(s)-8:]
}
