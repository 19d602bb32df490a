// internal/mirror/writer.go
package mirror

import (
	"errors"
	"fmt"
	"strings"
)

// EndpointClient is the delivery contract of a Modbus endpoint.
type EndpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Writer delivers mirror blocks into holding registers.
// The first write and the first write after any failure re-assert the full
// block; otherwise only changed contiguous runs are written.
type Writer struct {
	cli    EndpointClient
	unitID uint8
	base   uint16

	needFull bool
	last     []uint16
}

// NewWriter builds a writer for the block starting at base on unitID.
func NewWriter(cli EndpointClient, unitID uint8, base uint16) (*Writer, error) {
	if cli == nil {
		return nil, errors.New("mirror: endpoint client required")
	}
	return &Writer{
		cli:      cli,
		unitID:   unitID,
		base:     base,
		needFull: true,
	}, nil
}

// Write delivers regs. A block of a different length forces a full write.
func (w *Writer) Write(regs []uint16) error {
	if int(w.base)+len(regs) > 65536 {
		return fmt.Errorf("mirror: block of %d registers at %d exceeds address space", len(regs), w.base)
	}

	if w.needFull || len(w.last) != len(regs) {
		if err := w.writeChunked(0, regs); err != nil {
			w.needFull = true
			return fmt.Errorf("mirror: full block write failed: %w", err)
		}
		w.needFull = false
		w.last = append(w.last[:0], regs...)
		return nil
	}

	var errs []string

	for _, r := range changedRuns(w.last, regs) {
		if err := w.writeChunked(r.start, regs[r.start:r.end]); err != nil {
			errs = append(errs, fmt.Sprintf("regs %d..%d write failed: %v", r.start, r.end-1, err))
			continue
		}
		copy(w.last[r.start:r.end], regs[r.start:r.end])
	}

	if len(errs) > 0 {
		// partial failure: re-assert on next success
		w.needFull = true
		return errors.New("mirror: " + strings.Join(errs, " | "))
	}

	return nil
}

func (w *Writer) writeChunked(offset int, regs []uint16) error {
	for len(regs) > 0 {
		n := len(regs)
		if n > MaxWriteRegisters {
			n = MaxWriteRegisters
		}
		if err := w.cli.WriteRegisters(w.unitID, w.base+uint16(offset), regs[:n]); err != nil {
			return err
		}
		regs = regs[n:]
		offset += n
	}
	return nil
}

type run struct {
	start, end int // [start, end)
}

func changedRuns(prev, next []uint16) []run {
	var out []run
	for i := 0; i < len(next); i++ {
		if prev[i] == next[i] {
			continue
		}
		j := i + 1
		for j < len(next) && prev[j] != next[j] {
			j++
		}
		out = append(out, run{start: i, end: j})
		i = j
	}
	return out
}
