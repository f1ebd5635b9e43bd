package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ajali/internal/model"
)

// HistoryRepo reads the status ledger. Entries are only ever written by
// ReportRepo.TransitionTx.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// ListByReport returns the ledger of a report oldest first.
func (r *HistoryRepo) ListByReport(ctx context.Context, reportID string) ([]model.StatusHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seq, report_id, old_status, new_status, comment, changed_by_id, changed_at
		 FROM status_history WHERE report_id = ? ORDER BY changed_at, seq`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StatusHistory{}
	for rows.Next() {
		var (
			h       model.StatusHistory
			old     sql.NullString
			comment sql.NullString
			by      sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.Seq, &h.ReportID, &old, &h.NewStatus, &comment, &by, &h.ChangedAt); err != nil {
			return nil, err
		}
		h.OldStatus = model.ReportStatus(old.String)
		h.Comment = comment.String
		h.ChangedByID = by.String
		out = append(out, h)
	}
	return out, rows.Err()
}
