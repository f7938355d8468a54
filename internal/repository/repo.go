package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

// GetProgress returns the saved offset for source, or 0 when none was saved.
func (r *Repo) GetProgress(ctx context.Context, source string) (time.Duration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT position_ms FROM progress WHERE source = ?`, source)
	var ms int64
	if err := row.Scan(&ms); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (r *Repo) SetProgress(ctx context.Context, source string, pos time.Duration) error {
	if pos < 0 {
		pos = 0
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO progress(source, position_ms, updated_at) VALUES (?,?,?)
		ON CONFLICT(source) DO UPDATE SET position_ms=excluded.position_ms, updated_at=excluded.updated_at`,
		source, pos.Milliseconds(), r.now().Unix(),
	)
	return err
}

func (r *Repo) ListProgress(ctx context.Context) ([]Progress, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source, position_ms, updated_at FROM progress ORDER BY updated_at DESC, source ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Progress
	for rows.Next() {
		var (
			p       Progress
			ms, upd int64
		)
		if err := rows.Scan(&p.Source, &ms, &upd); err != nil {
			return nil, err
		}
		p.Position = time.Duration(ms) * time.Millisecond
		p.UpdatedAt = time.Unix(upd, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetResolved(ctx context.Context, source string) (*ResolvedURL, error) {
	row := r.db.QueryRowContext(ctx, `SELECT source, url, resolved_at FROM resolved_urls WHERE source = ?`, source)
	var (
		ru ResolvedURL
		at int64
	)
	if err := row.Scan(&ru.Source, &ru.URL, &at); err != nil {
		return nil, err
	}
	ru.ResolvedAt = time.Unix(at, 0)
	return &ru, nil
}

func (r *Repo) PutResolved(ctx context.Context, source, url string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resolved_urls(source, url, resolved_at) VALUES (?,?,?)`,
		source, url, r.now().Unix(),
	)
	return err
}

func (r *Repo) RemoveResolved(ctx context.Context, source string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM resolved_urls WHERE source=?`, source)
	return err
}

// PruneResolved drops entries resolved before cutoff.
func (r *Repo) PruneResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM resolved_urls WHERE resolved_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
