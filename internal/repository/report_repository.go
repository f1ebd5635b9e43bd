// Package repository contains data access logic separated from HTTP handlers.
// This file holds the report queries. Every mutation of a report runs in a
// transaction that first takes the row lock with SELECT ... FOR UPDATE, so
// edits, transitions, media changes and deletes of one report serialize.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/ajali/internal/model"
)

// ReportRepo encapsulates all database queries related to reports.
type ReportRepo struct {
	db *sql.DB
}

func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

const reportColumns = "id,title,description,incident_type,latitude,longitude,address,status,user_id,created_at,updated_at"

func scanReport(s rowScanner) (model.Report, error) {
	var (
		r       model.Report
		address sql.NullString
	)
	err := s.Scan(&r.ID, &r.Title, &r.Description, &r.IncidentType, &r.Latitude, &r.Longitude,
		&address, &r.Status, &r.UserID, &r.CreatedAt, &r.UpdatedAt)
	r.Address = address.String
	return r, err
}

// Create inserts a fully populated report.
func (r *ReportRepo) Create(ctx context.Context, rep *model.Report) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO reports ("+reportColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		rep.ID, rep.Title, rep.Description, rep.IncidentType, rep.Latitude, rep.Longitude,
		nullString(rep.Address), rep.Status, rep.UserID, rep.CreatedAt, rep.UpdatedAt)
	return err
}

// GetByID fetches a report by id, ErrNotFound when absent.
func (r *ReportRepo) GetByID(ctx context.Context, id string) (model.Report, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM reports WHERE id = ?", id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, ErrNotFound
	}
	return rep, err
}

// lockReport loads a report inside tx and holds its row lock until the
// transaction ends.
func lockReport(ctx context.Context, tx *sql.Tx, id string) (model.Report, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM reports WHERE id = ? FOR UPDATE", id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, ErrNotFound
	}
	return rep, err
}

// List returns one page of reports matching f together with the total
// number of matches. Filters are ANDed; results are ordered newest first
// with id as tie-breaker so paging is stable.
func (r *ReportRepo) List(ctx context.Context, f model.ReportFilter, p model.Page) ([]model.Report, int, error) {
	p = p.Normalize()

	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.IncidentType != "" {
		conds = append(conds, "incident_type = ?")
		args = append(args, f.IncidentType)
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p = p.Normalize()
	if p.PastEnd(total) {
		return []model.Report{}, total, nil
	}

	q := "SELECT " + reportColumns + " FROM reports" + where +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Report, 0, p.Size)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateContentTx locks the report, lets apply check access and edit the
// content fields, then writes them back. The status column is never
// touched here.
func (r *ReportRepo) UpdateContentTx(ctx context.Context, id string, apply func(*model.Report) error) (model.Report, error) {
	var out model.Report
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rep, err := lockReport(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(&rep); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE reports
			 SET title = ?, description = ?, incident_type = ?, latitude = ?, longitude = ?, address = ?, updated_at = ?
			 WHERE id = ?`,
			rep.Title, rep.Description, rep.IncidentType, rep.Latitude, rep.Longitude,
			nullString(rep.Address), rep.UpdatedAt, rep.ID)
		if err != nil {
			return err
		}
		out = rep
		return nil
	})
	return out, err
}

// TransitionTx locks the report and asks decide for the ledger entry to
// append. The new status and the entry are written in the same
// transaction; any error from decide or from storage rolls both back.
func (r *ReportRepo) TransitionTx(ctx context.Context, id string, decide func(model.Report) (model.StatusHistory, error)) (model.Report, model.StatusHistory, error) {
	var (
		rep   model.Report
		entry model.StatusHistory
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if rep, err = lockReport(ctx, tx, id); err != nil {
			return err
		}
		if entry, err = decide(rep); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			"UPDATE reports SET status = ?, updated_at = ? WHERE id = ?",
			entry.NewStatus, entry.ChangedAt, rep.ID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO status_history (id, report_id, old_status, new_status, comment, changed_by_id, changed_at)
			 VALUES (?,?,?,?,?,?,?)`,
			entry.ID, rep.ID, entry.OldStatus, entry.NewStatus, nullString(entry.Comment), entry.ChangedByID, entry.ChangedAt)
		if err != nil {
			return err
		}
		if seq, err := res.LastInsertId(); err == nil {
			entry.Seq = seq
		}
		rep.Status = entry.NewStatus
		rep.UpdatedAt = entry.ChangedAt
		return nil
	})
	if err != nil {
		return model.Report{}, model.StatusHistory{}, err
	}
	return rep, entry, nil
}

// DeleteTx locks the report and its media, lets check authorize the delete
// and release backing files, then removes history, media and the report.
func (r *ReportRepo) DeleteTx(ctx context.Context, id string, check func(model.Report, []model.Media) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		rep, err := lockReport(ctx, tx, id)
		if err != nil {
			return err
		}
		media, err := listMedia(ctx, tx, "report_id = ? FOR UPDATE", rep.ID)
		if err != nil {
			return err
		}
		if err := check(rep, media); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM status_history WHERE report_id = ?", rep.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM media WHERE report_id = ?", rep.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", rep.ID); err != nil {
			return err
		}
		return nil
	})
}

// CountByStatus counts reports per status, optionally for a single user.
func (r *ReportRepo) CountByStatus(ctx context.Context, userID string) (model.StatusCounts, error) {
	q := "SELECT status, COUNT(*) FROM reports"
	var args []any
	if userID != "" {
		q += " WHERE user_id = ?"
		args = append(args, userID)
	}
	q += " GROUP BY status"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := model.StatusCounts{}
	for rows.Next() {
		var (
			s model.ReportStatus
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// CountByType counts all reports per incident type.
func (r *ReportRepo) CountByType(ctx context.Context) (map[model.IncidentType]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT incident_type, COUNT(*) FROM reports GROUP BY incident_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.IncidentType]int{}
	for rows.Next() {
		var (
			t model.IncidentType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}
