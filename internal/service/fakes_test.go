package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/queue"
	"github.com/iliyamo/ajali/internal/repository"
	"github.com/iliyamo/ajali/internal/storage"
	"github.com/iliyamo/ajali/internal/utils"
)

// memDB is an in-memory stand-in for MySQL. One mutex plays the role of
// the row locks; transactional methods work on copies and only publish
// them when the callback succeeds.
type memDB struct {
	mu      sync.Mutex
	users   map[string]model.User
	tokens  map[string]memToken
	reports map[string]model.Report
	media   map[string]model.Media
	history []model.StatusHistory
	seq     int64

	failTransitionWrite bool
	transitionCalls     int
}

type memToken struct {
	userID  string
	exp     time.Time
	revoked bool
}

func newMemDB() *memDB {
	return &memDB{
		users:   map[string]model.User{},
		tokens:  map[string]memToken{},
		reports: map[string]model.Report{},
		media:   map[string]model.Media{},
	}
}

// --- users ---

type memUsers struct{ db *memDB }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.users {
		if x.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
		if x.Username == u.Username {
			return repository.ErrDuplicateUsername
		}
	}
	r.db.users[u.ID] = *u
	return nil
}

func (r memUsers) find(match func(model.User) bool) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = repository.NormalizeEmail(email)
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r memUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r memUsers) ListByIDs(_ context.Context, ids []string) (map[string]model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[string]model.User{}
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r memUsers) Count(context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.users), nil
}

func (r memUsers) PromoteAdmin(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Role, cur.IsActive, cur.PasswordHash, cur.UpdatedAt = model.RoleAdmin, true, u.PasswordHash, u.UpdatedAt
	r.db.users[u.ID] = cur
	u.Role, u.IsActive = model.RoleAdmin, true
	return nil
}

func (r memUsers) set(u model.User) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.users[u.ID] = u
}

// --- tokens ---

type memTokens struct{ db *memDB }

func (r memTokens) StoreRefresh(_ context.Context, userID, hash string, exp time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.tokens[hash] = memToken{userID: userID, exp: exp}
	return nil
}

func (r memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tokens[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return "", repository.ErrNotFound
	}
	return t.userID, nil
}

func (r memTokens) RevokeByHash(_ context.Context, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.tokens[hash]; ok {
		t.revoked = true
		r.db.tokens[hash] = t
	}
	return nil
}

func (r memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for h, t := range r.db.tokens {
		if t.userID == userID {
			t.revoked = true
			r.db.tokens[h] = t
		}
	}
	return nil
}

// --- reports ---

type memReports struct{ db *memDB }

func (r memReports) Create(_ context.Context, rep *model.Report) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.reports[rep.ID] = *rep
	return nil
}

func (r memReports) GetByID(_ context.Context, id string) (model.Report, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return model.Report{}, repository.ErrNotFound
	}
	return rep, nil
}

func (r memReports) List(_ context.Context, f model.ReportFilter, p model.Page) ([]model.Report, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []model.Report
	for _, rep := range r.db.reports {
		if f.Status != "" && rep.Status != f.Status {
			continue
		}
		if f.IncidentType != "" && rep.IncidentType != f.IncidentType {
			continue
		}
		if f.UserID != "" && rep.UserID != f.UserID {
			continue
		}
		all = append(all, rep)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	p = p.Normalize()
	total := len(all)
	if p.PastEnd(total) {
		return []model.Report{}, total, nil
	}
	end := p.Offset() + p.Size
	if end > total {
		end = total
	}
	return all[p.Offset():end], total, nil
}

func (r memReports) UpdateContentTx(_ context.Context, id string, apply func(*model.Report) error) (model.Report, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return model.Report{}, repository.ErrNotFound
	}
	status := rep.Status
	if err := apply(&rep); err != nil {
		return model.Report{}, err
	}
	rep.Status = status
	r.db.reports[id] = rep
	return rep, nil
}

func (r memReports) TransitionTx(_ context.Context, id string, decide func(model.Report) (model.StatusHistory, error)) (model.Report, model.StatusHistory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.transitionCalls++
	rep, ok := r.db.reports[id]
	if !ok {
		return model.Report{}, model.StatusHistory{}, repository.ErrNotFound
	}
	entry, err := decide(rep)
	if err != nil {
		return model.Report{}, model.StatusHistory{}, err
	}
	if r.db.failTransitionWrite {
		return model.Report{}, model.StatusHistory{}, errors.New("insert status_history: connection reset")
	}
	r.db.seq++
	entry.Seq = r.db.seq
	rep.Status = entry.NewStatus
	rep.UpdatedAt = entry.ChangedAt
	r.db.reports[id] = rep
	r.db.history = append(r.db.history, entry)
	return rep, entry, nil
}

func (r memReports) DeleteTx(_ context.Context, id string, check func(model.Report, []model.Media) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	var media []model.Media
	for _, m := range r.db.media {
		if m.ReportID == id {
			media = append(media, m)
		}
	}
	if err := check(rep, media); err != nil {
		return err
	}
	kept := r.db.history[:0]
	for _, h := range r.db.history {
		if h.ReportID != id {
			kept = append(kept, h)
		}
	}
	r.db.history = kept
	for _, m := range media {
		delete(r.db.media, m.ID)
	}
	delete(r.db.reports, id)
	return nil
}

func (r memReports) CountByStatus(_ context.Context, userID string) (model.StatusCounts, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := model.StatusCounts{}
	for _, rep := range r.db.reports {
		if userID == "" || rep.UserID == userID {
			out[rep.Status]++
		}
	}
	return out, nil
}

func (r memReports) CountByType(context.Context) (map[model.IncidentType]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[model.IncidentType]int{}
	for _, rep := range r.db.reports {
		out[rep.IncidentType]++
	}
	return out, nil
}

// --- media ---

type memMedia struct{ db *memDB }

func (r memMedia) CreateTx(_ context.Context, m *model.Media, check func(model.Report) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[m.ReportID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := check(rep); err != nil {
		return err
	}
	r.db.media[m.ID] = *m
	return nil
}

func (r memMedia) DeleteTx(_ context.Context, reportID, mediaID string, check func(model.Report, model.Media) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[reportID]
	if !ok {
		return repository.ErrNotFound
	}
	m, ok := r.db.media[mediaID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.ReportID != reportID {
		return repository.ErrMediaMismatch
	}
	if err := check(rep, m); err != nil {
		return err
	}
	delete(r.db.media, mediaID)
	return nil
}

func (r memMedia) ListByReports(_ context.Context, ids []string) (map[string][]model.Media, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string][]model.Media{}
	for _, m := range r.db.media {
		if want[m.ReportID] {
			out[m.ReportID] = append(out[m.ReportID], m)
		}
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return out, nil
}

// --- history ---

type memHistory struct{ db *memDB }

func (r memHistory) ListByReport(_ context.Context, reportID string) ([]model.StatusHistory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.StatusHistory{}
	for _, h := range r.db.history {
		if h.ReportID == reportID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ChangedAt.Before(out[j].ChangedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// --- files ---

type memFiles struct {
	mu         sync.Mutex
	files      map[string][]byte
	n          int
	maxBytes   int
	failDelete bool
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (f *memFiles) Save(_ context.Context, filename string, r io.Reader, mt model.MediaType) (storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Object{}, err
	}
	if f.maxBytes > 0 && len(data) > f.maxBytes {
		return storage.Object{}, storage.ErrTooLarge
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	path := fmt.Sprintf("%ss/file-%d-%s", mt, f.n, filename)
	f.files[path] = data
	return storage.Object{Path: path, Size: int64(len(data)), MIMEType: string(mt) + "/test"}, nil
}

func (f *memFiles) Delete(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("permission denied")
	}
	delete(f.files, path)
	return nil
}

func (f *memFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// --- notifier / logger ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) ofType(t string) []queue.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []queue.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Infof(string, ...interface{}) {}
func (l *recordingLogger) Warnf(f string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(f, a...))
}
func (l *recordingLogger) Errorf(string, ...interface{}) {}

// --- wiring ---

type fixture struct {
	db        *memDB
	files     *memFiles
	notifier  *recordingNotifier
	log       *recordingLogger
	identity  *IdentityService
	reports   *ReportService
	lifecycle *LifecycleEngine
	media     *MediaService
	clock     *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	f := &fixture{
		db:       db,
		files:    newMemFiles(),
		notifier: &recordingNotifier{},
		log:      &recordingLogger{},
		clock:    &fakeClock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
	}
	issuer := utils.NewTokenIssuer("test-secret", time.Hour, 24*time.Hour)
	var err error
	f.identity, err = NewIdentityService(memUsers{db}, memTokens{db}, issuer, 4, f.notifier, f.log)
	require.NoError(t, err)
	f.reports = NewReportService(memReports{db}, memMedia{db}, memUsers{db}, f.files, f.notifier, f.log)
	f.lifecycle = NewLifecycleEngine(memReports{db}, memHistory{db}, PermissivePolicy{}, f.notifier, f.log)
	f.media = NewMediaService(memReports{db}, memMedia{db}, f.files, f.log)

	f.identity.now = f.clock.Now
	f.reports.now = f.clock.Now
	f.lifecycle.now = f.clock.Now
	f.media.now = f.clock.Now
	return f
}

func (f *fixture) register(t *testing.T, email, username string) (model.User, *access.Actor) {
	t.Helper()
	sess, err := f.identity.Register(context.Background(), RegisterInput{
		Email: email, Username: username, Password: "Secret123", FullName: username + " Example",
	})
	require.NoError(t, err)
	return sess.User, &access.Actor{ID: sess.User.ID, Role: sess.User.Role}
}

func (f *fixture) admin(t *testing.T) *access.Actor {
	t.Helper()
	u, _, err := f.identity.SeedAdmin(context.Background(), "admin@ajali.co.ke", "admin", "AdminPass1")
	require.NoError(t, err)
	return &access.Actor{ID: u.ID, Role: u.Role}
}

func validReport() ReportInput {
	lat, lng := -1.2921, 36.8219
	return ReportInput{
		Title:        "Matatu crash on Thika Road",
		Description:  "Two vehicles collided near the flyover, traffic is blocked.",
		IncidentType: model.IncidentAccident,
		Latitude:     &lat,
		Longitude:    &lng,
		Address:      "Thika Road, Nairobi",
	}
}

func (f *fixture) submit(t *testing.T, actor *access.Actor) model.Report {
	t.Helper()
	r, err := f.reports.Create(context.Background(), actor, validReport())
	require.NoError(t, err)
	return r
}

func gifUpload(name string) Upload {
	return Upload{Filename: name, Body: bytes.NewReader([]byte("GIF89a-test"))}
}
