package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ContentHash returns a hex SHA-256 over the canonical JSON encoding of the
// given parts, in order. Map keys are sorted by encoding/json, so equal
// inputs always hash equal: the hash is a pure function of (inputs, config)
// and serves as the memoization key for period results.
func ContentHash(parts ...any) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", eris.Wrap(err, "model: hash encode")
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
