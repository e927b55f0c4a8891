// internal/writer/status_writer.go
package writer

import (
	"context"
	"fmt"

	"github.com/tamzrod/tenma-bridge/internal/status"
)

// endpointClient is the exact contract the block writer uses.
// Both the Modbus TCP client and the Raw Ingest client satisfy it.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// blockWriter writes one device block into holding registers.
type blockWriter struct {
	plan BlockPlan
	cli  endpointClient

	needFull bool
	last     []uint16 // slots 0..SlotDynamicEnd as last written
}

// NewBlockWriter builds the register block writer for one device.
func NewBlockWriter(plan BlockPlan, cli endpointClient) (Writer, error) {
	if cli == nil {
		return nil, fmt.Errorf("writer: missing client for endpoint %s", plan.Endpoint)
	}
	if (uint32(plan.BaseSlot)+1)*status.SlotsPerDevice > 1<<16 {
		return nil, fmt.Errorf("writer: base slot %d out of range", plan.BaseSlot)
	}
	return &blockWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first write
	}, nil
}

// Write delivers the block. The first write and the first write after any
// failure re-assert the full block, identity included. Otherwise only the
// changed span of the dynamic slots is written.
func (w *blockWriter) Write(_ context.Context, u Update) error {
	r := ReadingsFrom(u.Result)
	base := w.baseAddr()

	if w.needFull {
		regs := status.Encode(u.Health, r)
		if err := w.cli.WriteRegisters(w.plan.UnitID, base, regs); err != nil {
			return fmt.Errorf("writer: full block write failed ep=%s unit=%d slot=%d: %w",
				w.plan.Endpoint, w.plan.UnitID, w.plan.BaseSlot, err)
		}
		w.needFull = false
		w.last = regs[:status.SlotDynamicEnd+1]
		return nil
	}

	dyn := status.EncodeDynamic(u.Health, r)
	first, last, changed := changedSpan(w.last, dyn)
	if !changed {
		return nil
	}

	if err := w.cli.WriteRegisters(w.plan.UnitID, base+uint16(first), dyn[first:last+1]); err != nil {
		// Any partial failure introduces doubt: re-assert on next write.
		w.needFull = true
		return fmt.Errorf("writer: slots %d-%d write failed: %w", first, last, err)
	}
	w.last = dyn
	return nil
}

func (w *blockWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return w.plan.BaseSlot * status.SlotsPerDevice
}

// changedSpan returns the first and last index where a and b differ.
func changedSpan(a, b []uint16) (int, int, bool) {
	first, last := -1, -1
	for i := range b {
		if i < len(a) && a[i] == b[i] {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}
