// Package access holds the authorization rules for reports.  Every check
// takes the acting identity (nil when the caller is anonymous) and fails
// closed: no actor yields an unauthorized error, a known actor without the
// required relationship yields a forbidden error.
package access

import (
    "github.com/iliyamo/ajali/internal/apperr"
    "github.com/iliyamo/ajali/internal/model"
)

// Actor is the authenticated identity behind a request.
type Actor struct {
    ID   string
    Role string
}

func (a *Actor) IsAdmin() bool { return a != nil && a.Role == model.RoleAdmin }

func (a *Actor) owns(r model.Report) bool { return a != nil && a.ID != "" && a.ID == r.UserID }

var errNoActor = apperr.Unauthorized(apperr.CodeUnauthorized, "authentication required")

func forbidden(msg string) error { return apperr.Forbidden(apperr.CodeForbidden, msg) }

// CanRead allows everyone, anonymous callers included.
func CanRead(_ *Actor, _ model.Report) error { return nil }

// CanMutateContent allows the report owner and administrators.
func CanMutateContent(a *Actor, r model.Report) error {
    if a == nil {
        return errNoActor
    }
    if a.owns(r) || a.IsAdmin() {
        return nil
    }
    return forbidden("you can only modify your own reports")
}

// CanMutateStatus allows administrators only, owners included.
func CanMutateStatus(a *Actor, _ model.Report) error {
    if a == nil {
        return errNoActor
    }
    if a.IsAdmin() {
        return nil
    }
    return forbidden("admin access required")
}

// CanDelete follows the same rule as CanMutateContent.
func CanDelete(a *Actor, r model.Report) error {
    if a == nil {
        return errNoActor
    }
    if a.owns(r) || a.IsAdmin() {
        return nil
    }
    return forbidden("you can only delete your own reports")
}

// CanManageMedia allows the report owner only. Administrators can delete a
// whole report but cannot attach or detach its media.
func CanManageMedia(a *Actor, r model.Report) error {
    if a == nil {
        return errNoActor
    }
    if a.owns(r) {
        return nil
    }
    return forbidden("you can only manage media on your own reports")
}

// CanViewUserStats allows a user to see their own stats, admins anyone's.
func CanViewUserStats(a *Actor, userID string) error {
    if a == nil {
        return errNoActor
    }
    if a.ID == userID || a.IsAdmin() {
        return nil
    }
    return forbidden("you can only view your own stats")
}

// RequireAdmin guards admin-only screens.
func RequireAdmin(a *Actor) error {
    if a == nil {
        return errNoActor
    }
    if a.IsAdmin() {
        return nil
    }
    return forbidden("admin access required")
}

// RequireActor guards operations open to any signed-in user.
func RequireActor(a *Actor) error {
    if a == nil {
        return errNoActor
    }
    return nil
}
