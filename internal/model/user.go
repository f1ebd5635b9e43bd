package model

import "time"

// Role names stored in users.role.
const (
    RoleUser  = "user"
    RoleAdmin = "admin"
)

// User represents an account record as stored in the `users` table.
// The json tags are omitted on purpose; handlers render users through
// dedicated response types so the password hash never leaves the
// service layer.
//
// Fields:
//  ID           – UUID primary key.
//  Email        – unique, lower-cased address.
//  Username     – unique public handle.
//  PasswordHash – bcrypt digest.
//  FullName     – display name.
//  PhoneNumber  – optional contact number (empty when unset).
//  Role         – RoleUser or RoleAdmin.
//  IsActive     – deactivated accounts cannot log in.
type User struct {
    ID           string    // users.id
    Email        string    // users.email
    Username     string    // users.username
    PasswordHash string    // users.password_hash
    FullName     string    // users.full_name
    PhoneNumber  string    // users.phone_number (nullable)
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only
// the SHA-256 hash of the token handed to the client is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    string     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
