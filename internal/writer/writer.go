// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"strings"
)

var errNoWriters = errors.New("writer: no writers")

type multiWriter struct {
	writers []Writer
}

// New fans every update out to all writers. One failing sink does not
// stop the others; failures are joined into one error.
func New(writers ...Writer) (Writer, error) {
	var ws []Writer
	for _, w := range writers {
		if w != nil {
			ws = append(ws, w)
		}
	}
	if len(ws) == 0 {
		return nil, errNoWriters
	}
	return &multiWriter{writers: ws}, nil
}

func (m *multiWriter) Write(ctx context.Context, u Update) error {
	var errs []string

	for _, w := range m.writers {
		if err := w.Write(ctx, u); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}
