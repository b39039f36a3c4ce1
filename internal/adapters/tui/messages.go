package tui

import "time"

// MsgPlan resets the view to the planned blocks.
type MsgPlan struct {
	Blocks []string
}

// MsgBlockStart marks a block as building.
type MsgBlockStart struct {
	SpanID    string
	Name      string
	StartTime time.Time
}

// MsgBlockLog carries a chunk of toolchain output.
type MsgBlockLog struct {
	SpanID string
	Data   []byte
}

// MsgBlockComplete marks a block as finished.
type MsgBlockComplete struct {
	SpanID  string
	EndTime time.Time
	Cached  bool
	Err     error
}
