package dedup

import (
	"bufio"
	"errors"
	"io"

	"github.com/CodeMonkeyCybersecurity/anew/internal/logger"
)

const readBufferSize = 64 * 1024

// Stats summarises a run.
type Stats struct {
	Seeded    int // distinct lines known before streaming
	Read      int
	New       int
	Duplicate int
	// OutputClosed is set when echoing failed and the stream was abandoned.
	OutputClosed bool
}

// Processor streams records from an input through a Set. file and out are
// optional sinks: nil means the side effect is off.
type Processor struct {
	set  Set
	file io.Writer
	out  io.Writer
	log  *logger.Logger

	scratch []byte
}

// NewProcessor wires the stream phase. A write error from file aborts the run;
// a write error from out only stops it.
func NewProcessor(set Set, file, out io.Writer, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{set: set, file: file, out: out, log: log}
}

// Run consumes in until end of input, a fatal error or a closed output.
func (p *Processor) Run(in io.Reader) (Stats, error) {
	stats := Stats{Seeded: p.set.Len()}
	r := bufio.NewReaderSize(in, readBufferSize)

	for {
		record, err := p.readRecord(r)
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, &IOError{Op: "read input", Path: StdinPath, Err: err}
		}
		if len(record) == 0 {
			return stats, nil
		}
		eof := err != nil

		stats.Read++
		content := record
		if record[len(record)-1] == '\n' {
			content = record[:len(record)-1]
		} else {
			// full slice expression so the append never writes into the reader's buffer
			record = append(record[:len(record):len(record)], '\n')
		}

		if !p.set.Insert(content) {
			stats.Duplicate++
			if eof {
				return stats, nil
			}
			continue
		}
		stats.New++

		if p.file != nil {
			if _, err := p.file.Write(record); err != nil {
				return stats, err
			}
		}

		if p.out != nil {
			if _, err := p.out.Write(record); err != nil {
				stats.OutputClosed = true
				if IsBrokenPipe(err) {
					p.log.Debugw("Output closed by reader, stopping", "lines_read", stats.Read)
				} else {
					p.log.Debugw("Output write failed, stopping", "error", err, "lines_read", stats.Read)
				}
				return stats, nil
			}
		}

		if eof {
			return stats, nil
		}
	}
}

// readRecord returns the next record including its terminator when present.
// The result aliases either the reader's buffer or p.scratch and is only
// valid until the next call.
func (p *Processor) readRecord(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if !errors.Is(err, bufio.ErrBufferFull) {
		return line, err
	}

	buf := append(p.scratch[:0], line...)
	for errors.Is(err, bufio.ErrBufferFull) {
		line, err = r.ReadSlice('\n')
		buf = append(buf, line...)
	}
	p.scratch = buf
	return buf, err
}
