package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ajali/internal/model"
)

// MediaRepo stores attachment metadata. The files themselves live in the
// storage package.
type MediaRepo struct {
	db *sql.DB
}

func NewMediaRepo(db *sql.DB) *MediaRepo { return &MediaRepo{db: db} }

const mediaColumns = "id,filename,file_path,media_type,file_size,mime_type,report_id,created_at"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listMedia(ctx context.Context, q querier, where string, args ...any) ([]model.Media, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Media
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.ID, &m.Filename, &m.FilePath, &m.MediaType, &m.FileSize,
			&m.MimeType, &m.ReportID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateTx re-locks the owning report, lets check confirm access against the
// locked row and inserts m. ErrNotFound means the report vanished.
func (r *MediaRepo) CreateTx(ctx context.Context, m *model.Media, check func(model.Report) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		rep, err := lockReport(ctx, tx, m.ReportID)
		if err != nil {
			return err
		}
		if err := check(rep); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO media ("+mediaColumns+") VALUES (?,?,?,?,?,?,?,?)",
			m.ID, m.Filename, m.FilePath, m.MediaType, m.FileSize, m.MimeType, m.ReportID, m.CreatedAt)
		return err
	})
}

// DeleteTx locks the report and the media row, checks the row belongs to
// the report, lets check authorize and release the file, then deletes it.
func (r *MediaRepo) DeleteTx(ctx context.Context, reportID, mediaID string, check func(model.Report, model.Media) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		rep, err := lockReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		found, err := listMedia(ctx, tx, "id = ? FOR UPDATE", mediaID)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return ErrNotFound
		}
		if found[0].ReportID != rep.ID {
			return ErrMediaMismatch
		}
		if err := check(rep, found[0]); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM media WHERE id = ?", mediaID)
		return err
	})
}

// GetByID fetches one media row.
func (r *MediaRepo) GetByID(ctx context.Context, id string) (model.Media, error) {
	found, err := listMedia(ctx, r.db, "id = ?", id)
	if err != nil {
		return model.Media{}, err
	}
	if len(found) == 0 {
		return model.Media{}, ErrNotFound
	}
	return found[0], nil
}

// ListByReports loads the media of several reports in one query, grouped
// by report id and ordered by upload time.
func (r *MediaRepo) ListByReports(ctx context.Context, reportIDs []string) (map[string][]model.Media, error) {
	out := make(map[string][]model.Media, len(reportIDs))
	if len(reportIDs) == 0 {
		return out, nil
	}
	all, err := listMedia(ctx, r.db,
		"report_id IN ("+placeholders(len(reportIDs))+") ORDER BY created_at, id",
		stringArgs(reportIDs)...)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		out[m.ReportID] = append(out[m.ReportID], m)
	}
	return out, nil
}

// IsNotFound reports whether err means the addressed row is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMediaMismatch)
}
