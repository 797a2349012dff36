// Package notify is the orchestrator's notification surface: single
// (title, message) events emitted on activation, login and rotation
// outcomes. Dispatch is best-effort and never affects the result of the
// operation it annotates.
package notify

import (
	"time"

	"go.uber.org/zap"
)

// Event is one notification.
type Event struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier is a fire-and-forget event sink.
type Notifier interface {
	Notify(title, message string)
}

// LogNotifier mirrors events into the structured log, so outcomes are
// visible even with no shell connected.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a log-backed sink.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(title, message string) {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("message", message))
}

// Multi fans one event out to several sinks.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(title, message string) {
	for _, n := range m {
		n.Notify(title, message)
	}
}
