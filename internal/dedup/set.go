package dedup

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/anew/internal/config"
	"github.com/twmb/murmur3"
)

// Set is the membership set of lines seen so far. It only grows.
type Set interface {
	// Contains reports whether line is a member. line is not retained.
	Contains(line []byte) bool
	// Insert adds line and reports whether it was absent. The set keeps its
	// own copy; the caller may reuse line afterwards.
	Insert(line []byte) bool
	// Len returns the number of distinct members.
	Len() int
}

// NewSet returns the Set implementation for a config hash mode.
func NewSet(mode string) (Set, error) {
	switch mode {
	case "", config.HashExact:
		return NewExactSet(), nil
	case config.HashMurmur3:
		return NewFingerprintSet(), nil
	default:
		return nil, fmt.Errorf("unsupported hash mode %q", mode)
	}
}

// ExactSet keys on the full line content.
type ExactSet struct {
	m map[string]struct{}
}

func NewExactSet() *ExactSet {
	return &ExactSet{m: make(map[string]struct{})}
}

func (s *ExactSet) Contains(line []byte) bool {
	// map lookups keyed by string(line) do not allocate
	_, ok := s.m[string(line)]
	return ok
}

func (s *ExactSet) Insert(line []byte) bool {
	if _, ok := s.m[string(line)]; ok {
		return false
	}
	s.m[string(line)] = struct{}{}
	return true
}

func (s *ExactSet) Len() int {
	return len(s.m)
}

type fingerprint struct {
	h1, h2 uint64
}

func fingerprintOf(line []byte) fingerprint {
	h1, h2 := murmur3.Sum128(line)
	return fingerprint{h1: h1, h2: h2}
}

// FingerprintSet keys on the 128-bit murmur3 sum of each line, so memory per
// member is constant regardless of line length. Two distinct lines with the
// same sum are treated as one.
type FingerprintSet struct {
	m map[fingerprint]struct{}
}

func NewFingerprintSet() *FingerprintSet {
	return &FingerprintSet{m: make(map[fingerprint]struct{})}
}

func (s *FingerprintSet) Contains(line []byte) bool {
	_, ok := s.m[fingerprintOf(line)]
	return ok
}

func (s *FingerprintSet) Insert(line []byte) bool {
	fp := fingerprintOf(line)
	if _, ok := s.m[fp]; ok {
		return false
	}
	s.m[fp] = struct{}{}
	return true
}

func (s *FingerprintSet) Len() int {
	return len(s.m)
}
