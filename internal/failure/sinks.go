package failure

import (
	"context"

	"go.uber.org/zap"
)

// LogSink logs reports at error level.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(_ context.Context, r Report) error {
	s.log.Error("job failed permanently",
		zap.String("job_id", r.JobID.String()),
		zap.String("type", string(r.Type)),
		zap.Int("attempt_count", r.Attempts),
		zap.String("reason", r.Reason),
		zap.Time("timestamp", r.Timestamp),
	)
	return nil
}
