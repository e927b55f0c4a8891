// internal/writer/types.go
package writer

import (
	"context"

	"github.com/tamzrod/tenma-bridge/internal/poller"
	"github.com/tamzrod/tenma-bridge/internal/status"
)

// BlockPlan places one device's register block.
type BlockPlan struct {
	Endpoint string
	UnitID   uint8
	BaseSlot uint16
}

// Update is one delivery: the health snapshot plus the latest cycle.
type Update struct {
	Health status.Snapshot
	Result poller.PollResult

	// Message is the encoded periodic message. It is nil on
	// health-only updates (the seconds tick), which carry no new cycle.
	Message []byte
}

// Writer delivers updates to one sink.
type Writer interface {
	Write(ctx context.Context, u Update) error
}
