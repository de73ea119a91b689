package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type expiringStore interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// TranscriptCleanupJob drops session rows and transcript entries older than
// the retention window.
type TranscriptCleanupJob struct {
	sessions    expiringStore
	transcripts expiringStore
	retention   time.Duration
	now         func() time.Time
}

func NewTranscriptCleanupJob(sessions, transcripts expiringStore, retention time.Duration) *TranscriptCleanupJob {
	return &TranscriptCleanupJob{
		sessions:    sessions,
		transcripts: transcripts,
		retention:   retention,
		now:         time.Now,
	}
}

func (j *TranscriptCleanupJob) Name() string {
	return "transcript_cleanup"
}

func (j *TranscriptCleanupJob) Run(ctx context.Context) error {
	if j.sessions == nil || j.transcripts == nil {
		return nil
	}
	retention := j.retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	cutoff := j.now().Add(-retention).Unix()
	entries, err := j.transcripts.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	sessions, err := j.sessions.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("transcripts cleaned",
		zap.Int64("entries", entries),
		zap.Int64("sessions", sessions),
		zap.Int64("cutoff", cutoff),
	)
	return nil
}
