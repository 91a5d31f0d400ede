package client

import (
	"github.com/robfig/cron/v3"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"go.uber.org/zap"
)

// heartbeatParser accepts cron expressions with an optional seconds field as
// well as descriptors such as "@every 30s".
var heartbeatParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// startHeartbeat sends a ping on every tick of the heartbeat schedule until
// the link goes down. Pongs are only logged; a dead peer is noticed by the
// transport when a write fails.
func (c *Client) startHeartbeat(l *link) {
	if c.heartbeat == nil {
		return
	}

	beat := cron.New(cron.WithLogger(&cronLogger{logger: c.logger}))
	beat.Schedule(c.heartbeat, cron.FuncJob(func() {
		c.enqueue(l, message.PingFrame(c.nextID()))
	}))
	beat.Start()

	go func() {
		<-l.ctx.Done()
		<-beat.Stop().Done()
	}()
}

// cronLogger routes the scheduler's own logging to zap.
type cronLogger struct {
	logger *zap.Logger
}

func (z *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Debug(msg, cronFields(keysAndValues)...)
}

func (z *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.logger.Error(msg, append(cronFields(keysAndValues), zap.Error(err))...)
}

func cronFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	return fields
}
