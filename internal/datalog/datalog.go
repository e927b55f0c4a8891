// Package datalog keeps an in-memory record of cycle snapshots while
// logging is enabled and renders it as CSV.
package datalog

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tamzrod/tenma-bridge/internal/state"
)

// TimeFormat is the UTC ISO-8601 form used in the time column.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Header lists the CSV columns in order.
var Header = []string{
	"time",
	"onDuration",
	"outputEnabled",
	"channel1mode",
	"channel1currentSet",
	"channel1currentOutput",
	"channel1voltageSet",
	"channel1voltageOutput",
	"channel2mode",
	"channel2currentSet",
	"channel2currentOutput",
	"channel2voltageSet",
	"channel2voltageOutput",
}

// Entry is one logged cycle.
type Entry struct {
	Time         time.Time
	OnDurationMs int64
	State        state.DeviceState
}

// Log is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	enabled bool
	entries []Entry
	max     int
}

// New returns a disabled log. maxEntries > 0 caps it; the oldest entries go first.
func New(maxEntries int) *Log {
	return &Log{max: maxEntries}
}

// Start enables recording.
func (l *Log) Start() {
	l.mu.Lock()
	l.enabled = true
	l.mu.Unlock()
}

// Stop disables recording. Entries are kept.
func (l *Log) Stop() {
	l.mu.Lock()
	l.enabled = false
	l.mu.Unlock()
}

// Clear drops every entry; the enabled flag is kept.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Enabled reports whether Append records.
func (l *Log) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Append records e if logging is enabled and reports whether it did.
func (l *Log) Append(e Entry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return false
	}
	l.entries = append(l.entries, e)
	if l.max > 0 && len(l.entries) > l.max {
		n := copy(l.entries, l.entries[len(l.entries)-l.max:])
		l.entries = l.entries[:n]
	}
	return true
}

// Entries returns a copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// WriteCSV writes the header and every entry. Every field is quoted and
// lines end in CRLF. Unset readings are written as null.
func (l *Log) WriteCSV(w io.Writer) error {
	entries := l.Entries()

	bw := bufio.NewWriter(w)
	writeRow(bw, Header)
	for _, e := range entries {
		writeRow(bw, row(e))
	}
	return bw.Flush()
}

// FileName is the attachment name for a download taken at now.
func FileName(identity string, now time.Time) string {
	return identity + now.UTC().Format(TimeFormat) + "log.csv"
}

func row(e Entry) []string {
	s := e.State

	out := "Off"
	if on, _ := s.OutputEnabled.Get(); on {
		out = "On"
	}

	fields := []string{
		e.Time.UTC().Format(TimeFormat),
		fmt.Sprintf("%.3f", float64(e.OnDurationMs)/1000),
		out,
	}
	modes := [state.Channels]string{s.Channel1Mode.String(), s.Channel2Mode.String()}
	for ch := 1; ch <= state.Channels; ch++ {
		fields = append(fields,
			modes[ch-1],
			s.CurrentSetting.Channel(ch).String(),
			s.CurrentOutput.Channel(ch).String(),
			s.VoltageSetting.Channel(ch).String(),
			s.VoltageOutput.Channel(ch).String(),
		)
	}
	return fields
}

func writeRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteString("\r\n")
}
