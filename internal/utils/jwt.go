package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for refresh tokens
    "encoding/hex"  // hex encoding and decoding functions
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived token used to obtain new access
// tokens. Only a SHA-256 hash of Raw is ever stored.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// Claims is what a verified access token asserts about its bearer.
type Claims struct {
    UserID string
    Role   string
    Exp    time.Time
}

var (
    ErrTokenInvalid = errors.New("token invalid")
    ErrTokenExpired = errors.New("token expired")
)

// TokenIssuer signs and verifies HS256 access tokens and mints refresh
// tokens.
type TokenIssuer struct {
    Secret     []byte
    AccessTTL  time.Duration
    RefreshTTL time.Duration
    now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
    return &TokenIssuer{Secret: []byte(secret), AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

func (t *TokenIssuer) clock() time.Time {
    if t.now == nil {
        return time.Now().UTC()
    }
    return t.now().UTC()
}

// NewAccessToken builds and signs an HS256 JWT carrying the standard
// subject, role, expiration and issued-at claims.
func (t *TokenIssuer) NewAccessToken(userID, role string) (AccessToken, error) {
    now := t.clock()
    exp := now.Add(t.AccessTTL)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify checks signature, algorithm and expiry of raw. Expired tokens are
// reported as ErrTokenExpired, everything else as ErrTokenInvalid.
func (t *TokenIssuer) Verify(raw string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) {
        // Reject anything that is not HMAC.
        if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenInvalid
        }
        return t.Secret, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(t.clock),
    )
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return Claims{}, ErrTokenExpired
        }
        return Claims{}, ErrTokenInvalid
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok || !tok.Valid {
        return Claims{}, ErrTokenInvalid
    }
    sub, _ := mc["sub"].(string)
    if sub == "" {
        return Claims{}, ErrTokenInvalid
    }
    role, _ := mc["role"].(string)
    out := Claims{UserID: sub, Role: role}
    if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
        out.Exp = exp.Time
    }
    return out, nil
}

// NewRefreshToken returns a cryptographically secure random token and its
// expiration time.
func (t *TokenIssuer) NewRefreshToken() (RefreshToken, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{Raw: raw, Exp: t.clock().Add(t.RefreshTTL)}, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a hex
// string.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
