package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return s, nil
}

// Schedule applies the migration on every tick of spec until ctx is done.
// A failed tick is logged and the schedule keeps running. Ticks are not
// serialized against each other.
func (e *Engine) Schedule(ctx context.Context, spec string) error {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(cronParser), cron.WithLogger(cronLogger{e.logger}))
	c.Schedule(schedule, cron.FuncJob(func() {
		if _, err := e.Apply(ctx); err != nil {
			e.logger.Error("scheduled run failed", "error", err.Error())
		}
	}))

	e.logger.Info("schedule started", "cron", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	e.logger.Info("schedule stopped")
	return nil
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
