package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/replconsole/internal/model"
	"github.com/xxxsen/replconsole/internal/pkg/dbutil"
	appErr "github.com/xxxsen/replconsole/internal/pkg/errors"
)

type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, s *model.ConsoleSession) error {
	data := map[string]interface{}{
		"id":        s.ID,
		"evaluator": s.Evaluator,
		"state":     s.State,
		"error":     s.Error,
		"ctime":     s.Ctime,
		"mtime":     s.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("console_sessions", []map[string]interface{}{data})
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

func (r *SessionRepo) UpdateState(ctx context.Context, id, state, errMsg string, mtime int64) error {
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{"state": state, "error": errMsg, "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("console_sessions", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*model.ConsoleSession, error) {
	where := map[string]interface{}{"id": id, "_limit": []uint{0, 1}}
	sqlStr, args, err := builder.BuildSelect("console_sessions", where, []string{"id", "evaluator", "state", "error", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	var items []model.ConsoleSession
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func (r *SessionRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("console_sessions", map[string]interface{}{"ctime <": cutoff})
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
