// Package service implements the report platform's operations on top of the
// repositories. Every operation validates its input and checks access
// before touching storage, and returns *apperr.Error values only.
package service

import (
	"context"
	"io"
	"time"

	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/queue"
	"github.com/iliyamo/ajali/internal/repository"
	"github.com/iliyamo/ajali/internal/storage"
)

// Logger is satisfied by the gommon logger echo uses.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Notifier receives events after their change has committed. It must not
// block and has no way to fail the calling operation.
type Notifier interface {
	Notify(ctx context.Context, ev queue.Event)
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
	Count(ctx context.Context) (int, error)
	PromoteAdmin(ctx context.Context, u *model.User) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type ReportStore interface {
	Create(ctx context.Context, r *model.Report) error
	GetByID(ctx context.Context, id string) (model.Report, error)
	List(ctx context.Context, f model.ReportFilter, p model.Page) ([]model.Report, int, error)
	UpdateContentTx(ctx context.Context, id string, apply func(*model.Report) error) (model.Report, error)
	TransitionTx(ctx context.Context, id string, decide func(model.Report) (model.StatusHistory, error)) (model.Report, model.StatusHistory, error)
	DeleteTx(ctx context.Context, id string, check func(model.Report, []model.Media) error) error
	CountByStatus(ctx context.Context, userID string) (model.StatusCounts, error)
	CountByType(ctx context.Context) (map[model.IncidentType]int, error)
}

type MediaStore interface {
	CreateTx(ctx context.Context, m *model.Media, check func(model.Report) error) error
	DeleteTx(ctx context.Context, reportID, mediaID string, check func(model.Report, model.Media) error) error
	ListByReports(ctx context.Context, reportIDs []string) (map[string][]model.Media, error)
}

type HistoryStore interface {
	ListByReport(ctx context.Context, reportID string) ([]model.StatusHistory, error)
}

// FileStore keeps the bytes behind media records.
type FileStore interface {
	Save(ctx context.Context, filename string, r io.Reader, mediaType model.MediaType) (storage.Object, error)
	Delete(path string) error
}

var (
	_ UserStore    = (*repository.UserRepo)(nil)
	_ TokenStore   = (*repository.TokenRepo)(nil)
	_ ReportStore  = (*repository.ReportRepo)(nil)
	_ MediaStore   = (*repository.MediaRepo)(nil)
	_ HistoryStore = (*repository.HistoryRepo)(nil)
	_ FileStore    = (*storage.LocalStore)(nil)
)

// storeErr converts a repository failure into an *apperr.Error. Errors that
// already are typed (raised by guard callbacks inside a transaction) pass
// through untouched.
func storeErr(what, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if repository.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return apperr.Internal(op, err)
}

func utcNow() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, queue.Event) {}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
