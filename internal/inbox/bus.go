// Package inbox carries locally delivered notifications to the store over
// an in-process watermill bus.
package inbox

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Topic is the bus topic for incoming notifications.
const Topic = "notifications.incoming"

// NewBus returns an in-memory pub/sub logging through l.
func NewBus(l *zap.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		zapAdapter{l: l},
	)
}

// zapAdapter routes watermill logs to zap.
type zapAdapter struct {
	l *zap.Logger
}

func (a zapAdapter) fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a zapAdapter) Error(msg string, err error, f watermill.LogFields) {
	a.l.Error(msg, append(a.fields(f), zap.Error(err))...)
}

func (a zapAdapter) Info(msg string, f watermill.LogFields) {
	a.l.Info(msg, a.fields(f)...)
}

func (a zapAdapter) Debug(msg string, f watermill.LogFields) {
	a.l.Debug(msg, a.fields(f)...)
}

func (a zapAdapter) Trace(msg string, f watermill.LogFields) {
	a.l.Debug(msg, a.fields(f)...)
}

func (a zapAdapter) With(f watermill.LogFields) watermill.LoggerAdapter {
	return zapAdapter{l: a.l.With(a.fields(f)...)}
}
