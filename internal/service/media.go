package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/storage"
)

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// MediaService attaches files to reports and detaches them. Only the
// report's owner may do either.
type MediaService struct {
	reports ReportStore
	media   MediaStore
	files   FileStore
	log     Logger
	now     func() time.Time
}

func NewMediaService(reports ReportStore, media MediaStore, files FileStore, log Logger) *MediaService {
	if log == nil {
		log = nopLogger{}
	}
	return &MediaService{reports: reports, media: media, files: files, log: log, now: utcNow}
}

// Attach stores the upload and records it against the report. The written
// file is removed again if the record cannot be committed.
func (s *MediaService) Attach(ctx context.Context, actor *access.Actor, reportID string, up Upload, declared string) (model.Media, error) {
	if err := access.RequireActor(actor); err != nil {
		return model.Media{}, err
	}
	mediaType := model.MediaType(declared)
	if declared == "" {
		mediaType = model.MediaImage
	}
	if !mediaType.IsValid() {
		return model.Media{}, apperr.InvalidMediaType("media_type must be image or video")
	}
	if up.Body == nil {
		return model.Media{}, apperr.InvalidField(apperr.CodeValidation, "file", "is required")
	}

	r, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return model.Media{}, storeErr("report", "load report", err)
	}
	if err := access.CanManageMedia(actor, r); err != nil {
		return model.Media{}, err
	}

	name := storage.SanitizeFilename(up.Filename)
	if !storage.AllowedExtension(name, mediaType) {
		return model.Media{}, apperr.InvalidMediaType("file extension not allowed for " + string(mediaType))
	}
	obj, err := s.files.Save(ctx, name, up.Body, mediaType)
	if err != nil {
		return model.Media{}, fileErr(err)
	}

	m := model.Media{
		ID:        uuid.NewString(),
		Filename:  name,
		FilePath:  obj.Path,
		MediaType: mediaType,
		FileSize:  obj.Size,
		MimeType:  obj.MIMEType,
		ReportID:  r.ID,
		CreatedAt: s.now(),
	}
	err = s.media.CreateTx(ctx, &m, func(locked model.Report) error {
		return access.CanManageMedia(actor, locked)
	})
	if err != nil {
		if rmErr := s.files.Delete(obj.Path); rmErr != nil {
			s.log.Warnf("attach media to %s: cleanup %s: %v", r.ID, obj.Path, rmErr)
		}
		return model.Media{}, storeErr("report", "save media", err)
	}
	return m, nil
}

// Detach deletes one attachment. A media id that belongs to another report
// is reported as not found. The backing file is removed best effort.
func (s *MediaService) Detach(ctx context.Context, actor *access.Actor, reportID, mediaID string) error {
	if err := access.RequireActor(actor); err != nil {
		return err
	}
	err := s.media.DeleteTx(ctx, reportID, mediaID, func(r model.Report, m model.Media) error {
		if err := access.CanManageMedia(actor, r); err != nil {
			return err
		}
		if err := s.files.Delete(m.FilePath); err != nil {
			s.log.Warnf("detach media %s: remove file %s: %v", m.ID, m.FilePath, err)
		}
		return nil
	})
	return storeErr("media", "delete media", err)
}

func fileErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return apperr.FileError(apperr.CodeFileTooLarge, "file exceeds upload limit", err)
	case errors.Is(err, storage.ErrDisallowedExtension), errors.Is(err, storage.ErrMediaMismatch):
		return apperr.InvalidMediaType("file content does not match media type")
	case errors.Is(err, storage.ErrEmptyFile):
		return apperr.InvalidField(apperr.CodeValidation, "file", "is empty")
	default:
		return apperr.FileError(apperr.CodeFileWrite, "could not store file", err)
	}
}
