// Package repository defines error types that are reused across multiple
// repositories. These sentinel values let the service layer tell a missing
// row apart from a uniqueness clash without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail and ErrDuplicateUsername are returned when an insert
// hits the matching unique index on users.
var (
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

// ErrMediaMismatch is returned when a media row exists but belongs to a
// different report than the one addressed.
var ErrMediaMismatch = errors.New("media does not belong to report")

const mysqlDuplicateEntry = 1062

// duplicateKey returns the index name of a MySQL duplicate-entry error and
// whether err was one.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	// message looks like: Duplicate entry 'x' for key 'users.uq_users_email'
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
		return key, true
	}
	return "", true
}
