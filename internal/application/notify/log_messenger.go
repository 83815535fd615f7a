package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogMessenger writes notifications to the log instead of a chat. It stands
// in for the real messenger when no bot token is configured, so the rest of
// the pipeline behaves identically in dry runs.
type LogMessenger struct {
	log *zap.SugaredLogger
}

// NewLogMessenger returns a messenger that only logs.
func NewLogMessenger(log *zap.SugaredLogger) *LogMessenger {
	return &LogMessenger{log: log}
}

// Send logs the would-be message and succeeds.
func (m *LogMessenger) Send(ctx context.Context, chatID int64, text string) error {
	m.log.Infow("notification (dry run)", "chat_id", chatID, "text", text)
	return nil
}
