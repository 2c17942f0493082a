package chat

import (
	"log/slog"

	"github.com/user/resumechat/internal/types"
)

// NotifierFunc adapts a function to types.Notifier.
type NotifierFunc func(level types.NoticeLevel, text string)

func (f NotifierFunc) Notify(level types.NoticeLevel, text string) { f(level, text) }

// LogNotifier routes notifications to a logger. It is the fallback when no
// notifier is configured.
func LogNotifier(l *slog.Logger) types.Notifier {
	return NotifierFunc(func(level types.NoticeLevel, text string) {
		switch level {
		case types.NoticeError:
			l.Error(text)
		case types.NoticeWarning:
			l.Warn(text)
		default:
			l.Info(text)
		}
	})
}
