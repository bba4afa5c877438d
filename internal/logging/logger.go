// Package logging defines the structured logger shared by handlers, the
// cache layer and the event consumer.
package logging

import "context"

// Logger is a context-aware, structured logger. args are key/value pairs:
//
//	log.Warn(ctx, "profile cache read failed", "user_id", id, "err", err)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
