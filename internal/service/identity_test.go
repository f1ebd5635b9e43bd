package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/queue"
)

func requireAppErr(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T: %v", err, err)
	assert.Equal(t, kind, ae.Kind)
	if code != "" {
		assert.Equal(t, code, ae.Code)
	}
	return ae
}

func TestRegister_IssuesTokensForNewAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.identity.Register(ctx, RegisterInput{
		Email: " A@X.com ", Username: "alice", Password: "Secret123", FullName: "Alice Wanjiru",
	})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", sess.User.Email)
	assert.Equal(t, model.RoleUser, sess.User.Role)
	assert.True(t, sess.User.IsActive)
	assert.NotEqual(t, "Secret123", sess.User.PasswordHash)
	assert.NotEmpty(t, sess.Access.Token)
	assert.NotEmpty(t, sess.Refresh.Raw)

	actor, u, err := f.identity.ResolveToken(ctx, sess.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, actor.ID)
	assert.Equal(t, "alice", u.Username)

	evs := f.notifier.ofType(queue.EventUserRegistered)
	require.Len(t, evs, 1)
	assert.Equal(t, sess.User.ID, evs[0].UserID)
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "alice")

	_, err := f.identity.Register(ctx, RegisterInput{
		Email: "A@X.COM", Username: "alice2", Password: "Secret123", FullName: "Alice Again",
	})
	requireAppErr(t, err, apperr.KindConflict, apperr.CodeEmailExists)

	_, err = f.identity.Register(ctx, RegisterInput{
		Email: "other@x.com", Username: "alice", Password: "Secret123", FullName: "Alice Again",
	})
	requireAppErr(t, err, apperr.KindConflict, apperr.CodeUsernameExists)

	n, _ := memUsers{f.db}.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestRegister_ValidationFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.identity.Register(context.Background(), RegisterInput{
		Email: "not-an-email", Username: "al", Password: "short", FullName: "A",
	})
	ae := requireAppErr(t, err, apperr.KindValidation, apperr.CodeValidation)
	for _, field := range []string{"email", "username", "password", "full_name"} {
		assert.Contains(t, ae.Fields, field)
	}
}

func TestRegister_PasswordByteLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, pw := range map[string]string{
		"ascii":     strings.Repeat("a", 100),
		"multibyte": strings.Repeat("é", 40), // 40 characters, 80 bytes
	} {
		_, err := f.identity.Register(ctx, RegisterInput{
			Email: name + "@x.com", Username: name, Password: pw, FullName: "Long Password",
		})
		ae := requireAppErr(t, err, apperr.KindValidation, apperr.CodeValidation)
		assert.Equal(t, "must be at most 72 bytes", ae.Fields["password"], name)
	}
	assert.Empty(t, f.db.users)

	_, err := f.identity.Register(ctx, RegisterInput{
		Email: "edge@x.com", Username: "edge", Password: strings.Repeat("a", 72), FullName: "Edge Case",
	})
	require.NoError(t, err)
}

func TestHashPassword_TooLongIsFieldError(t *testing.T) {
	f := newFixture(t)
	_, err := f.identity.hashPassword(strings.Repeat("a", 73))
	ae := requireAppErr(t, err, apperr.KindValidation, apperr.CodeValidation)
	assert.Contains(t, ae.Fields, "password")
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "a@x.com", "alice")

	sess, err := f.identity.Authenticate(ctx, "a@x.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, sess.User.ID)

	_, err = f.identity.Authenticate(ctx, "a@x.com", "wrong-password")
	wrong := requireAppErr(t, err, apperr.KindUnauthorized, apperr.CodeInvalidCredentials)

	_, err = f.identity.Authenticate(ctx, "nobody@x.com", "Secret123")
	unknown := requireAppErr(t, err, apperr.KindUnauthorized, apperr.CodeInvalidCredentials)
	assert.Equal(t, wrong.Message, unknown.Message)

	_, err = f.identity.Authenticate(ctx, "", "")
	requireAppErr(t, err, apperr.KindValidation, "")

	alice.IsActive = false
	memUsers{f.db}.set(alice)
	_, err = f.identity.Authenticate(ctx, "a@x.com", "Secret123")
	requireAppErr(t, err, apperr.KindForbidden, apperr.CodeAccountDeactivated)
}

func TestResolveToken_UsesStoredRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.identity.Register(ctx, RegisterInput{
		Email: "b@x.com", Username: "bob", Password: "Secret123", FullName: "Bob Otieno",
	})
	require.NoError(t, err)

	u := sess.User
	u.Role = model.RoleAdmin
	memUsers{f.db}.set(u)

	actor, _, err := f.identity.ResolveToken(ctx, sess.Access.Token)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())

	u.IsActive = false
	memUsers{f.db}.set(u)
	_, _, err = f.identity.ResolveToken(ctx, sess.Access.Token)
	requireAppErr(t, err, apperr.KindForbidden, apperr.CodeAccountDeactivated)

	_, _, err = f.identity.ResolveToken(ctx, "garbage")
	requireAppErr(t, err, apperr.KindUnauthorized, apperr.CodeTokenInvalid)
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.identity.Register(ctx, RegisterInput{
		Email: "a@x.com", Username: "alice", Password: "Secret123", FullName: "Alice Wanjiru",
	})
	require.NoError(t, err)

	next, err := f.identity.Refresh(ctx, sess.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Refresh.Raw, next.Refresh.Raw)

	_, err = f.identity.Refresh(ctx, sess.Refresh.Raw)
	requireAppErr(t, err, apperr.KindUnauthorized, apperr.CodeTokenInvalid)

	_, err = f.identity.Refresh(ctx, "")
	requireAppErr(t, err, apperr.KindValidation, "")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.identity.Register(ctx, RegisterInput{
		Email: "a@x.com", Username: "alice", Password: "Secret123", FullName: "Alice Wanjiru",
	})
	require.NoError(t, err)
	second, err := f.identity.Authenticate(ctx, "a@x.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, f.identity.Logout(ctx, nil, sess.Refresh.Raw))
	_, err = f.identity.Refresh(ctx, sess.Refresh.Raw)
	requireAppErr(t, err, apperr.KindUnauthorized, "")

	actor := &access.Actor{ID: sess.User.ID, Role: sess.User.Role}
	require.NoError(t, f.identity.Logout(ctx, actor, ""))
	_, err = f.identity.Refresh(ctx, second.Refresh.Raw)
	requireAppErr(t, err, apperr.KindUnauthorized, "")

	requireAppErr(t, f.identity.Logout(ctx, nil, ""), apperr.KindValidation, "")
}

func TestSeedAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, created, err := f.identity.SeedAdmin(ctx, "root@x.com", "root", "AdminPass1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.RoleAdmin, admin.Role)

	again, created, err := f.identity.SeedAdmin(ctx, "root@x.com", "root", "NewPass123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
	_, err = f.identity.Authenticate(ctx, "root@x.com", "NewPass123")
	require.NoError(t, err)

	carol, _ := f.register(t, "c@x.com", "carol")
	promoted, created, err := f.identity.SeedAdmin(ctx, "c@x.com", "carol", "AdminPass1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, carol.ID, promoted.ID)
	assert.Equal(t, model.RoleAdmin, promoted.Role)

	_, _, err = f.identity.SeedAdmin(ctx, "x@x.com", "x", "short")
	requireAppErr(t, err, apperr.KindValidation, "")

	_, _, err = f.identity.SeedAdmin(ctx, "root@x.com", "root", strings.Repeat("p", 80))
	ae := requireAppErr(t, err, apperr.KindValidation, apperr.CodeValidation)
	assert.Contains(t, ae.Fields, "password")
}
