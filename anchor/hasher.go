package anchor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Digest is a SHA-256 anchor hash.
type Digest [sha256.Size]byte

// String renders the digest as 64 lowercase hex characters.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDigest parses a 64 character hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(sha256.Size) {
		return d, fmt.Errorf("parse digest: expected %d hex characters, got %d", hex.EncodedLen(sha256.Size), len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	return d, nil
}

// Accumulator folds canonical event bytes, in order, into one SHA-256 state.
// It belongs to a single computation and must not be shared.
type Accumulator struct {
	h         hash.Hash
	count     int
	finalized bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{h: sha256.New()}
}

// Update appends one event's canonical bytes.
func (a *Accumulator) Update(canonical []byte) error {
	if a.finalized {
		return ErrFinalized
	}
	// hash.Hash.Write never returns an error.
	_, _ = a.h.Write(canonical)
	a.count++
	return nil
}

// Count returns the number of updates so far.
func (a *Accumulator) Count() int { return a.count }

// Finalize returns the digest. With no updates this is SHA-256 of empty input.
func (a *Accumulator) Finalize() (Digest, error) {
	var d Digest
	if a.finalized {
		return d, ErrFinalized
	}
	a.finalized = true
	copy(d[:], a.h.Sum(nil))
	return d, nil
}
