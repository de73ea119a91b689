package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/replconsole/internal/model"
	"github.com/xxxsen/replconsole/internal/pkg/dbutil"
	appErr "github.com/xxxsen/replconsole/internal/pkg/errors"
)

type TranscriptRepo struct {
	db *sqlx.DB
}

func NewTranscriptRepo(db *sqlx.DB) *TranscriptRepo {
	return &TranscriptRepo{db: db}
}

func (r *TranscriptRepo) Append(ctx context.Context, entry *model.TranscriptEntry) error {
	data := map[string]interface{}{
		"session_id": entry.SessionID,
		"seq":        entry.Seq,
		"source":     entry.Source,
		"result":     entry.Result,
		"has_result": entry.HasResult,
		"ctime":      entry.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("console_transcripts", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// ListBySession returns the newest entries first.
func (r *TranscriptRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]model.TranscriptEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := map[string]interface{}{
		"session_id": sessionID,
		"_orderby":   "seq desc",
		"_limit":     []uint{uint(offset), uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("console_transcripts", where, []string{
		"session_id", "seq", "source", "result", "has_result", "ctime",
	})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	items := make([]model.TranscriptEntry, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *TranscriptRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("console_transcripts", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
