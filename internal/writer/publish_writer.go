// internal/writer/publish_writer.go
package writer

import "context"

type publisher interface {
	Publish(ctx context.Context, identity string, payload []byte) error
}

// publishWriter forwards periodic messages to a message bus.
type publishWriter struct {
	pub publisher
}

// NewPublishWriter adapts a publisher. Health-only updates are skipped.
func NewPublishWriter(pub publisher) Writer {
	return &publishWriter{pub: pub}
}

func (w *publishWriter) Write(ctx context.Context, u Update) error {
	if u.Message == nil {
		return nil
	}
	return w.pub.Publish(ctx, u.Result.Identity, u.Message)
}
