package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/service"
)

// uploadTimeout replaces requestTimeout for uploads, which stream the whole
// file to disk before committing.
const uploadTimeout = 60 * time.Second

// MediaAPI is the part of service.MediaService the HTTP layer uses.
type MediaAPI interface {
	Attach(ctx context.Context, actor *access.Actor, reportID string, up service.Upload, declared string) (model.Media, error)
	Detach(ctx context.Context, actor *access.Actor, reportID, mediaID string) error
}

var _ MediaAPI = (*service.MediaService)(nil)

type MediaHandler struct {
	Media MediaAPI
}

func NewMediaHandler(media MediaAPI) *MediaHandler {
	return &MediaHandler{Media: media}
}

// Upload: POST /api/reports/:id/media, multipart with "file" and an
// optional "media_type" (image by default).
func (h *MediaHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			return he
		case errors.Is(err, http.ErrMissingFile):
			return apperr.InvalidField(apperr.CodeValidation, "file", "is required")
		default:
			return apperr.Validation("invalid multipart body", nil)
		}
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.FileError(apperr.CodeFileWrite, "could not read upload", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(c.Request().Context(), uploadTimeout)
	defer cancel()

	m, err := h.Media.Attach(ctx, actorOf(c), c.Param("id"),
		service.Upload{Filename: fh.Filename, Body: f}, c.FormValue("media_type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Media uploaded successfully",
		"media":   toMedia(m),
	})
}

// Delete: DELETE /api/reports/:id/media/:media_id
func (h *MediaHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Media.Detach(ctx, actorOf(c), c.Param("id"), c.Param("media_id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Media deleted successfully"))
}
