package simpleasset

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// AssetAccepted does nothing and returns nil
func (n *NoopEventSink) AssetAccepted(ctx context.Context, asset *Asset) error {
	return nil
}

// AssetCompleted does nothing and returns nil
func (n *NoopEventSink) AssetCompleted(ctx context.Context, asset *Asset) error {
	return nil
}

// AssetFailed does nothing and returns nil
func (n *NoopEventSink) AssetFailed(ctx context.Context, asset *Asset, cause error) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) AssetAccepted(ctx context.Context, asset *Asset) error {
	l.logger.InfoContext(ctx, "asset accepted",
		"asset_id", asset.ID, "filename", asset.Filename, "size", asset.Size)
	return nil
}

func (l *LoggingEventSink) AssetCompleted(ctx context.Context, asset *Asset) error {
	l.logger.InfoContext(ctx, "asset completed", "asset_id", asset.ID, "url", asset.URL)
	return nil
}

func (l *LoggingEventSink) AssetFailed(ctx context.Context, asset *Asset, cause error) error {
	l.logger.WarnContext(ctx, "asset failed", "asset_id", asset.ID, "error", cause)
	return nil
}
