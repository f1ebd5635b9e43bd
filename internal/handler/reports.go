package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/service"
)

// ReportAPI is the part of service.ReportService the HTTP layer uses.
type ReportAPI interface {
	Create(ctx context.Context, actor *access.Actor, in service.ReportInput) (model.Report, error)
	Get(ctx context.Context, actor *access.Actor, id string) (model.Report, error)
	List(ctx context.Context, q service.ListQuery) (service.ReportPage, error)
	ListAll(ctx context.Context, actor *access.Actor, q service.ListQuery) (service.ReportPage, error)
	UpdateContent(ctx context.Context, actor *access.Actor, id string, patch service.ReportPatch) (model.Report, error)
	Delete(ctx context.Context, actor *access.Actor, id string) error
	UserStats(ctx context.Context, actor *access.Actor, userID string) (model.UserReportStats, error)
	PlatformStats(ctx context.Context, actor *access.Actor) (model.PlatformStats, error)
	Views(ctx context.Context, reports []model.Report) ([]service.ReportView, error)
	View(ctx context.Context, r model.Report) (service.ReportView, error)
	UsersByID(ctx context.Context, ids []string) (map[string]model.User, error)
}

var _ ReportAPI = (*service.ReportService)(nil)

// ReportHandler serves the public and reporter-facing report endpoints.
type ReportHandler struct {
	Reports ReportAPI
}

func NewReportHandler(reports ReportAPI) *ReportHandler {
	return &ReportHandler{Reports: reports}
}

// listParams are the query parameters of both report listings.
type listParams struct {
	Status       string `query:"status"`
	IncidentType string `query:"incident_type"`
	UserID       string `query:"user_id"`
	Page         int    `query:"page" json:"page" validate:"omitempty,min=1"`
	PerPage      int    `query:"per_page" json:"per_page" validate:"omitempty,min=1,max=100"`
}

func (p listParams) query() service.ListQuery {
	return service.ListQuery{
		Status: p.Status, IncidentType: p.IncidentType, UserID: p.UserID,
		Page: p.Page, PageSize: p.PerPage,
	}
}

// List: GET /api/reports?status=&incident_type=&user_id=&page=&per_page=
func (h *ReportHandler) List(c echo.Context) error {
	var p listParams
	if err := bindQuery(c, &p); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Reports.List(ctx, p.query())
	if err != nil {
		return err
	}
	return h.writePage(ctx, c, page)
}

func (h *ReportHandler) writePage(ctx context.Context, c echo.Context, page service.ReportPage) error {
	views, err := h.Reports.Views(ctx, page.Items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reports":    toReports(views),
		"pagination": toPagination(page),
	})
}

// Get: GET /api/reports/:id
func (h *ReportHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reports.Get(ctx, actorOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return h.writeReport(ctx, c, http.StatusOK, "", r)
}

func (h *ReportHandler) writeReport(ctx context.Context, c echo.Context, status int, msg string, r model.Report) error {
	v, err := h.Reports.View(ctx, r)
	if err != nil {
		return err
	}
	body := echo.Map{"report": toReport(v)}
	if msg != "" {
		body["message"] = msg
	}
	return c.JSON(status, body)
}

// Create: POST /api/reports
func (h *ReportHandler) Create(c echo.Context) error {
	var in service.ReportInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reports.Create(ctx, actorOf(c), in)
	if err != nil {
		return err
	}
	return h.writeReport(ctx, c, http.StatusCreated, "Report created successfully", r)
}

// Update: PUT /api/reports/:id. Any status field in the body is ignored.
func (h *ReportHandler) Update(c echo.Context) error {
	var patch service.ReportPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reports.UpdateContent(ctx, actorOf(c), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return h.writeReport(ctx, c, http.StatusOK, "Report updated successfully", r)
}

// Delete: DELETE /api/reports/:id
func (h *ReportHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Reports.Delete(ctx, actorOf(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Report deleted successfully"))
}

// UserStats: GET /api/reports/stats/:user_id
func (h *ReportHandler) UserStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Reports.UserStats(ctx, actorOf(c), c.Param("user_id"))
	if err != nil {
		return err
	}
	body := echo.Map{"total": st.Total}
	for _, s := range model.Statuses {
		body[string(s)] = st.ByStatus[s]
	}
	return c.JSON(http.StatusOK, body)
}
