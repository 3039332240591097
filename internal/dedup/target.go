package dedup

import (
	"os"
)

var terminator = []byte{'\n'}

// Target is the append handle on the target file. There is exactly one
// writer per run.
type Target struct {
	path string
	f    *os.File
}

// OpenTarget opens seed.Path for append, creating it if needed. When the seed
// content lacks a final terminator one is written immediately, before any
// line is appended.
func OpenTarget(seed Seed) (*Target, error) {
	f, err := os.OpenFile(seed.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &IOError{Op: "open target file", Path: seed.Path, Err: err}
	}

	t := &Target{path: seed.Path, f: f}
	if seed.NeedsTerminator() {
		if _, err := t.Write(terminator); err != nil {
			f.Close()
			return nil, err
		}
	}
	return t, nil
}

// Write appends p. Failures come back as *IOError and are fatal to the run;
// nothing already on disk is rolled back.
func (t *Target) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	if err != nil {
		return n, &IOError{Op: "write target file", Path: t.path, Err: err}
	}
	return n, nil
}

func (t *Target) Close() error {
	if err := t.f.Close(); err != nil {
		return &IOError{Op: "close target file", Path: t.path, Err: err}
	}
	return nil
}
