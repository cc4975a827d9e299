// Package worker attaches background event consumers to the dispatcher at startup.
package worker

import (
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/events"
)

// Subscriber attaches its handlers to a dispatcher it already holds.
type Subscriber interface {
	Name() string
	RegisterHandlers() []events.EventType
}

// Start registers every subscriber and returns how many event bindings were made.
// A subscriber that attaches nothing is logged so a miswired dispatcher is visible.
func Start(logger *zap.Logger, subscribers ...Subscriber) int {
	total := 0
	for _, sub := range subscribers {
		if sub == nil {
			continue
		}
		types := sub.RegisterHandlers()
		if len(types) == 0 {
			logger.Warn("subscriber registered no handlers", zap.String("subscriber", sub.Name()))
			continue
		}

		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		logger.Info("subscriber registered",
			zap.String("subscriber", sub.Name()),
			zap.Strings("events", names),
		)
		total += len(types)
	}
	return total
}
