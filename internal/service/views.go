package service

import (
	"context"

	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
)

// ReportView is a report with its reporter and attachments, split by type.
type ReportView struct {
	Report   model.Report
	Reporter *model.User
	Images   []model.Media
	Videos   []model.Media
}

// Views decorates reports with reporters and media using one query for
// each, whatever the number of reports.
func (s *ReportService) Views(ctx context.Context, reports []model.Report) ([]ReportView, error) {
	ids := make([]string, 0, len(reports))
	userIDs := make([]string, 0, len(reports))
	seen := map[string]bool{}
	for _, r := range reports {
		ids = append(ids, r.ID)
		if !seen[r.UserID] {
			seen[r.UserID] = true
			userIDs = append(userIDs, r.UserID)
		}
	}
	media, err := s.media.ListByReports(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load media", err)
	}
	users, err := s.users.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, apperr.Internal("load reporters", err)
	}

	out := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		v := ReportView{Report: r, Images: []model.Media{}, Videos: []model.Media{}}
		if u, ok := users[r.UserID]; ok {
			v.Reporter = &u
		}
		for _, m := range media[r.ID] {
			if m.MediaType == model.MediaVideo {
				v.Videos = append(v.Videos, m)
			} else {
				v.Images = append(v.Images, m)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// View decorates a single report.
func (s *ReportService) View(ctx context.Context, r model.Report) (ReportView, error) {
	vs, err := s.Views(ctx, []model.Report{r})
	if err != nil {
		return ReportView{}, err
	}
	return vs[0], nil
}

// UsersByID loads accounts for display, for example the administrators
// named in a status history.
func (s *ReportService) UsersByID(ctx context.Context, ids []string) (map[string]model.User, error) {
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load users", err)
	}
	return users, nil
}
