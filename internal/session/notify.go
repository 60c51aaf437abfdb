package session

import "log/slog"

// Notices shown to the user.
const (
	NoticeEmptyPhrase     = "Please enter a phrase"
	NoticeEmptySearch     = "Please enter a search term"
	NoticeBusy            = "Already generating"
	NoticeNothingToExport = "Nothing to export"
	NoticeLoadFailed      = "Couldn't load hypergraph"
	NoticeSaveFailed      = "Couldn't save hyperedge"
	NoticeWormholeFailed  = "Wormhole failed"
)

// Notifier surfaces transient notices.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Success(msg string) {
	n.logger().Info("notice", slog.String("level", "success"), slog.String("message", msg))
}

func (n LogNotifier) Error(msg string) {
	n.logger().Warn("notice", slog.String("level", "error"), slog.String("message", msg))
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}
