package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized structured logging key for import session identifiers.
	FieldSessionID = "session_id"
	// FieldSource is the standardized structured logging key for remote source names.
	FieldSource = "source"
	// FieldPlaylistID is the standardized structured logging key for playlist identifiers.
	FieldPlaylistID = "playlist_id"
	// FieldMediaID is the standardized structured logging key for media item identifiers.
	FieldMediaID = "media_id"
	// FieldBatch is the standardized structured logging key for 1-based batch indexes.
	FieldBatch = "batch"
	// FieldBatchCount is the standardized structured logging key for total batches in a session.
	FieldBatchCount = "batch_count"
	// FieldOperationID is the standardized structured logging key for database operation correlation ids.
	FieldOperationID = "operation_id"
	// FieldEventType is the standardized structured logging key for machine-readable event markers.
	FieldEventType = "event_type"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	sourceKey
	batchKey
	mediaIDKey
)

// WithSessionID annotates ctx with the import session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithSource annotates ctx with the remote source name.
func WithSource(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, sourceKey, name)
}

// WithBatch annotates ctx with the 1-based batch index.
func WithBatch(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, batchKey, index)
}

// WithMediaID annotates ctx with the remote media identifier.
func WithMediaID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, mediaIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if name, ok := ctx.Value(sourceKey).(string); ok && name != "" {
		fields = append(fields, slog.String(FieldSource, name))
	}
	if batch, ok := ctx.Value(batchKey).(int); ok {
		fields = append(fields, slog.Int(FieldBatch, batch))
	}
	if id, ok := ctx.Value(mediaIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldMediaID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
