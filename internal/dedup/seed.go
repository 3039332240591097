package dedup

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
)

// Seed describes the target file as it was before streaming began.
type Seed struct {
	Path string
	// Exists is false when the file was absent; that is not an error.
	Exists bool
	Size   int
	// Lines counts the fragments inserted, duplicates included.
	Lines int
	// TrailingNewline is true when the content is non-empty and ends in '\n'.
	TrailingNewline bool
}

// NeedsTerminator reports whether a '\n' must be written before appending so
// the previous last line is not joined with the first new one. Empty and
// missing files never need one.
func (s Seed) NeedsTerminator() bool {
	return s.Size > 0 && !s.TrailingNewline
}

// LoadSeed reads path and inserts each of its lines into set. A missing file
// yields an empty Seed. Any other read failure is an *IOError.
func LoadSeed(path string, set Set) (Seed, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Seed{Path: path}, nil
		}
		return Seed{}, &IOError{Op: "read seed file", Path: path, Err: err}
	}

	seed := SeedFrom(content, set)
	seed.Path = path
	seed.Exists = true
	return seed, nil
}

// SeedFrom splits content on '\n' and inserts every fragment into set. A
// non-empty fragment after the last terminator counts as a line; an empty
// one does not. Empty lines between terminators are members like any other.
func SeedFrom(content []byte, set Set) Seed {
	seed := Seed{
		Size:            len(content),
		TrailingNewline: len(content) > 0 && content[len(content)-1] == '\n',
	}

	remaining := content
	for len(remaining) > 0 {
		idx := bytes.IndexByte(remaining, '\n')
		if idx < 0 {
			set.Insert(remaining)
			seed.Lines++
			break
		}
		set.Insert(remaining[:idx])
		seed.Lines++
		remaining = remaining[idx+1:]
	}
	return seed
}
