package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/queue"
)

// ReportInput is the submission form. Coordinates are pointers so that a
// missing value can be told apart from 0.
type ReportInput struct {
	Title        string             `json:"title" validate:"required,min=5,max=200"`
	Description  string             `json:"description" validate:"required,min=20"`
	IncidentType model.IncidentType `json:"incident_type" validate:"required,incident_type"`
	Latitude     *float64           `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64           `json:"longitude" validate:"required,gte=-180,lte=180"`
	Address      string             `json:"address" validate:"omitempty,max=255"`
}

// ReportPatch carries the content fields a reporter may change. Nil means
// unchanged. Status changes go through LifecycleEngine only.
type ReportPatch struct {
	Title        *string             `json:"title" validate:"omitnil,min=5,max=200"`
	Description  *string             `json:"description" validate:"omitnil,min=20"`
	IncidentType *model.IncidentType `json:"incident_type" validate:"omitnil,incident_type"`
	Latitude     *float64            `json:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude    *float64            `json:"longitude" validate:"omitnil,gte=-180,lte=180"`
	Address      *string             `json:"address" validate:"omitnil,max=255"`
}

func (p *ReportPatch) normalize() {
	for _, f := range []*string{p.Title, p.Description, p.Address} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func (p ReportPatch) apply(r *model.Report) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.IncidentType != nil {
		r.IncidentType = *p.IncidentType
	}
	if p.Latitude != nil {
		r.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		r.Longitude = *p.Longitude
	}
	if p.Address != nil {
		r.Address = *p.Address
	}
}

// ListQuery is a filtered, paged listing request as it arrives from a
// client. Empty strings mean "no filter".
type ListQuery struct {
	Status       string
	IncidentType string
	UserID       string
	Page         int
	PageSize     int
}

// ReportPage is one page of a listing.
type ReportPage struct {
	Items    []model.Report
	Total    int
	Page     int
	PageSize int
}

// Pages returns the number of pages for Total.
func (p ReportPage) Pages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// ReportService handles report submission, reading, editing and deletion.
type ReportService struct {
	reports ReportStore
	media   MediaStore
	users   UserStore
	files   FileStore
	notify  Notifier
	log     Logger
	now     func() time.Time
}

func NewReportService(reports ReportStore, media MediaStore, users UserStore, files FileStore, notify Notifier, log Logger) *ReportService {
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &ReportService{reports: reports, media: media, users: users, files: files, notify: notify, log: log, now: utcNow}
}

// Create stores a new report owned by actor. The status is always pending
// whatever the client sent.
func (s *ReportService) Create(ctx context.Context, actor *access.Actor, in ReportInput) (model.Report, error) {
	if err := access.RequireActor(actor); err != nil {
		return model.Report{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	if err := validateStruct(in); err != nil {
		return model.Report{}, err
	}
	now := s.now()
	r := model.Report{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		IncidentType: in.IncidentType,
		Latitude:     *in.Latitude,
		Longitude:    *in.Longitude,
		Address:      in.Address,
		Status:       model.StatusPending,
		UserID:       actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.reports.Create(ctx, &r); err != nil {
		return model.Report{}, apperr.Internal("create report", err)
	}
	s.notify.Notify(ctx, queue.Event{
		Type: queue.EventReportCreated, ReportID: r.ID, Title: r.Title, UserID: r.UserID, OccurredAt: now,
	})
	return r, nil
}

// Get returns a report to anyone.
func (s *ReportService) Get(ctx context.Context, actor *access.Actor, id string) (model.Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return model.Report{}, storeErr("report", "load report", err)
	}
	if err := access.CanRead(actor, r); err != nil {
		return model.Report{}, err
	}
	return r, nil
}

// List returns one page of reports, newest first.
func (s *ReportService) List(ctx context.Context, q ListQuery) (ReportPage, error) {
	f := model.ReportFilter{
		Status:       model.ReportStatus(strings.TrimSpace(q.Status)),
		IncidentType: model.IncidentType(strings.TrimSpace(q.IncidentType)),
		UserID:       strings.TrimSpace(q.UserID),
	}
	fields := map[string]string{}
	if f.Status != "" && !f.Status.IsValid() {
		fields["status"] = "must be one of " + joinEnum(model.Statuses)
	}
	if f.IncidentType != "" && !f.IncidentType.IsValid() {
		fields["incident_type"] = "must be one of " + joinEnum(model.IncidentTypes)
	}
	if len(fields) > 0 {
		return ReportPage{}, apperr.Validation("invalid filter", fields)
	}

	p := model.Page{Number: q.Page, Size: q.PageSize}.Normalize()
	items, total, err := s.reports.List(ctx, f, p)
	if err != nil {
		return ReportPage{}, apperr.Internal("list reports", err)
	}
	return ReportPage{Items: items, Total: total, Page: p.Number, PageSize: p.Size}, nil
}

// ListAll is the administrator's listing; it accepts the same filters.
func (s *ReportService) ListAll(ctx context.Context, actor *access.Actor, q ListQuery) (ReportPage, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return ReportPage{}, err
	}
	return s.List(ctx, q)
}

// UpdateContent edits content fields under the report's row lock. Only the
// owner or an administrator may do so.
func (s *ReportService) UpdateContent(ctx context.Context, actor *access.Actor, id string, patch ReportPatch) (model.Report, error) {
	if err := access.RequireActor(actor); err != nil {
		return model.Report{}, err
	}
	patch.normalize()
	if err := validateStruct(patch); err != nil {
		return model.Report{}, err
	}
	r, err := s.reports.UpdateContentTx(ctx, id, func(r *model.Report) error {
		if err := access.CanMutateContent(actor, *r); err != nil {
			return err
		}
		patch.apply(r)
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return model.Report{}, storeErr("report", "update report", err)
	}
	return r, nil
}

// Delete removes a report with its media files, media rows and history.
// File removal is best effort: a file that cannot be removed is logged and
// the delete still commits.
func (s *ReportService) Delete(ctx context.Context, actor *access.Actor, id string) error {
	if err := access.RequireActor(actor); err != nil {
		return err
	}
	err := s.reports.DeleteTx(ctx, id, func(r model.Report, media []model.Media) error {
		if err := access.CanDelete(actor, r); err != nil {
			return err
		}
		for _, m := range media {
			if err := s.files.Delete(m.FilePath); err != nil {
				s.log.Warnf("delete report %s: remove file %s: %v", r.ID, m.FilePath, err)
			}
		}
		return nil
	})
	return storeErr("report", "delete report", err)
}

// UserStats counts a user's reports by status. Users see their own,
// administrators anyone's.
func (s *ReportService) UserStats(ctx context.Context, actor *access.Actor, userID string) (model.UserReportStats, error) {
	if err := access.CanViewUserStats(actor, userID); err != nil {
		return model.UserReportStats{}, err
	}
	counts, err := s.reports.CountByStatus(ctx, userID)
	if err != nil {
		return model.UserReportStats{}, apperr.Internal("count reports", err)
	}
	return model.UserReportStats{Total: sumCounts(counts), ByStatus: fillStatuses(counts)}, nil
}

// PlatformStats summarises users and reports for administrators.
func (s *ReportService) PlatformStats(ctx context.Context, actor *access.Actor) (model.PlatformStats, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return model.PlatformStats{}, err
	}
	users, err := s.users.Count(ctx)
	if err != nil {
		return model.PlatformStats{}, apperr.Internal("count users", err)
	}
	byStatus, err := s.reports.CountByStatus(ctx, "")
	if err != nil {
		return model.PlatformStats{}, apperr.Internal("count reports", err)
	}
	byType, err := s.reports.CountByType(ctx)
	if err != nil {
		return model.PlatformStats{}, apperr.Internal("count reports", err)
	}
	for _, t := range model.IncidentTypes {
		if _, ok := byType[t]; !ok {
			byType[t] = 0
		}
	}
	return model.PlatformStats{
		TotalUsers:   users,
		TotalReports: sumCounts(byStatus),
		ByStatus:     fillStatuses(byStatus),
		ByType:       byType,
	}, nil
}

func sumCounts(c model.StatusCounts) int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func fillStatuses(c model.StatusCounts) model.StatusCounts {
	out := make(model.StatusCounts, len(model.Statuses))
	for _, st := range model.Statuses {
		out[st] = c[st]
	}
	return out
}
