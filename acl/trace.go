package acl

import (
	"context"
	"log/slog"
)

// Decision captures one policy evaluation for the debug trace hook.
type Decision struct {
	Action  Action
	Targets []Target
	Owner   bool
	Rules   []string // descriptions of the matching rules
	Allow   bool
}

// TraceSink receives ACL decisions. Implementations must be safe for
// concurrent use.
type TraceSink interface {
	Trace(ctx context.Context, d Decision)
}

// NopSink discards all decisions.
type NopSink struct{}

// Trace implements TraceSink.
func (NopSink) Trace(context.Context, Decision) {}

// SlogSink traces decisions to a structured logger at debug level.
type SlogSink struct {
	Logger *slog.Logger
}

// Trace implements TraceSink.
func (s SlogSink) Trace(ctx context.Context, d Decision) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "acl decision",
		slog.String("action", string(d.Action)),
		slog.Any("targets", d.Targets),
		slog.Bool("owner", d.Owner),
		slog.Any("rules", d.Rules),
		slog.Bool("allow", d.Allow),
	)
}
