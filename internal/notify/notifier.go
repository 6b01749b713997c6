package notify

import (
	"context"
	"log/slog"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

type Notifier interface {
	Notify(ctx context.Context, bracketID string, signals []bracket.Signal)
}

// LogNotifier records every signal in the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, bracketID string, signals []bracket.Signal) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range signals {
		logger.InfoContext(ctx, "bracket signal", "bracket_id", bracketID, "kind", s.Kind, "subject", s.Subject)
	}
}

// Multi fans signals out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, bracketID string, signals []bracket.Signal) {
	for _, n := range m {
		n.Notify(ctx, bracketID, signals)
	}
}
