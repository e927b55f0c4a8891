package api

import (
	"github.com/tamzrod/tenma-bridge/internal/state"
)

// MessagePeriodic identifies the state push.
const MessagePeriodic = "periodic"

// Log toggles. They are handled by the bridge and never reach the supply.
const (
	CmdStartLog = "startLog"
	CmdStopLog  = "stopLog"
	CmdClearLog = "clearLog"
)

// Message is the periodic state push sent to clients and exporters.
type Message struct {
	MessageID  string            `json:"messageid"`
	Identity   string            `json:"identity"`
	State      state.DeviceState `json:"state"`
	Logging    bool              `json:"logging"`
	LogLine    int               `json:"logline"`
	OnDuration int64             `json:"onduration"`
}

// Message builds the current periodic message from the live mirror.
func (s *Server) Message() Message {
	return Message{
		MessageID:  MessagePeriodic,
		Identity:   s.dev.Identity(),
		State:      s.dev.Snapshot(),
		Logging:    s.datalog.Enabled(),
		LogLine:    s.datalog.Len(),
		OnDuration: s.onDuration.Load(),
	}
}

// SetOnDuration records the on-duration of the latest cycle.
func (s *Server) SetOnDuration(ms int64) {
	s.onDuration.Store(ms)
}
