package dedup

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// StdinPath names standard input in IOError values.
const StdinPath = "<stdin>"

// IOError is an unrecoverable I/O failure. It names the operation and the
// path involved so the CLI can report it verbatim.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsBrokenPipe reports whether err means the reader of a pipe went away,
// e.g. `anew seen.txt | head`.
func IsBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}
