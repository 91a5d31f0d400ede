package handlers

import (
	"context"

	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingDataHandler logs every data message and passes it on to the wrapped
// handler, if any.
type LoggingDataHandler struct {
	wrapped  client.DataHandler
	logger   *zap.Logger
	logLevel zapcore.Level
}

// NewLoggingDataHandler creates a LoggingDataHandler. wrapped may be nil.
func NewLoggingDataHandler(wrapped client.DataHandler, logger *zap.Logger, logLevel zapcore.Level) *LoggingDataHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingDataHandler{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
	}
}

func (l *LoggingDataHandler) OnData(ctx context.Context, msg message.Message) error {
	fields := []zap.Field{
		zap.Stringer("kind", msg.Kind()),
		zap.String("collection", msg.Collection()),
		zap.String("id", msg.ID()),
	}
	if msg.Has(message.AttrFields) {
		fields = append(fields, zap.Any("fields", msg.Fields()))
	}
	if cleared := msg.Cleared(); len(cleared) > 0 {
		fields = append(fields, zap.Strings("cleared", cleared))
	}
	if msg.Has(message.AttrBefore) {
		fields = append(fields, zap.String("before", msg.Before()))
	}

	l.logger.Log(l.logLevel, "Data message", fields...)

	if l.wrapped != nil {
		return l.wrapped.OnData(ctx, msg)
	}
	return nil
}
