package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/service"
)

// LifecycleAPI is the part of service.LifecycleEngine the admin endpoints use.
type LifecycleAPI interface {
	Transition(ctx context.Context, actor *access.Actor, reportID string, in service.TransitionInput) (model.Report, model.StatusHistory, error)
	History(ctx context.Context, actor *access.Actor, reportID string) ([]model.StatusHistory, error)
}

var _ LifecycleAPI = (*service.LifecycleEngine)(nil)

// AdminHandler serves /api/admin. The routes sit behind RequireRole, and
// the services check the role again.
type AdminHandler struct {
	Reports   ReportAPI
	Lifecycle LifecycleAPI
}

func NewAdminHandler(reports ReportAPI, lifecycle LifecycleAPI) *AdminHandler {
	return &AdminHandler{Reports: reports, Lifecycle: lifecycle}
}

// ListReports: GET /api/admin/reports
func (h *AdminHandler) ListReports(c echo.Context) error {
	var p listParams
	if err := bindQuery(c, &p); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Reports.ListAll(ctx, actorOf(c), p.query())
	if err != nil {
		return err
	}
	views, err := h.Reports.Views(ctx, page.Items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reports":    toReports(views),
		"pagination": toPagination(page),
	})
}

// UpdateStatus: PATCH /api/admin/reports/:id/status {"status": ..., "comment": ...}
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	var in service.TransitionInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	actor := actorOf(c)
	r, entry, err := h.Lifecycle.Transition(ctx, actor, c.Param("id"), in)
	if err != nil {
		return err
	}
	v, err := h.Reports.View(ctx, r)
	if err != nil {
		return err
	}
	users, err := h.Reports.UsersByID(ctx, []string{entry.ChangedByID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "Report status updated successfully",
		"report":        toReport(v),
		"status_change": toHistory(entry, users),
	})
}

// History: GET /api/admin/reports/:id/history, newest first.
func (h *AdminHandler) History(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	reportID := c.Param("id")
	entries, err := h.Lifecycle.History(ctx, actorOf(c), reportID)
	if err != nil {
		return err
	}
	var ids []string
	seen := map[string]bool{}
	for _, e := range entries {
		if e.ChangedByID != "" && !seen[e.ChangedByID] {
			seen[e.ChangedByID] = true
			ids = append(ids, e.ChangedByID)
		}
	}
	users, err := h.Reports.UsersByID(ctx, ids)
	if err != nil {
		return err
	}
	out := make([]historyJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistory(e, users))
	}
	return c.JSON(http.StatusOK, echo.Map{"report_id": reportID, "history": out})
}

// Stats: GET /api/admin/stats
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Reports.PlatformStats(ctx, actorOf(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"statistics": echo.Map{
		"total_users":       st.TotalUsers,
		"total_reports":     st.TotalReports,
		"reports_by_status": st.ByStatus,
		"reports_by_type":   st.ByType,
	}})
}
