package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/heartlog/rehab-api/internal/domain"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrMissingSecret is returned by Issue when no signing secret is configured.
	ErrMissingSecret = errors.New("auth: session signing secret not configured")
	// ErrInvalidClaim is returned by Issue for an empty subject or unknown role.
	ErrInvalidClaim = errors.New("auth: invalid session claim")
)

// Claims is the session token payload.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens. The issuing handlers and the
// gate each build their own instance from config; nothing is shared between them but
// the secret, so both sides agree by running the same code.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of tm that reads time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	clone := *tm
	clone.now = now
	return &clone
}

// verifyClock truncates to the claim resolution. With one second of leeway the
// library's now < exp+leeway check becomes now <= exp.
func (tm *TokenManager) verifyClock() time.Time {
	return tm.now().Truncate(time.Second)
}

// Configured reports whether a signing secret is present.
func (tm *TokenManager) Configured() bool {
	return tm != nil && len(tm.secret) > 0
}

// TTL returns the lifetime applied to issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for subject with the given role.
func (tm *TokenManager) Issue(subject string, role domain.Role) (string, time.Time, error) {
	if !tm.Configured() {
		return "", time.Time{}, ErrMissingSecret
	}
	if strings.TrimSpace(subject) == "" || !role.Valid() {
		return "", time.Time{}, ErrInvalidClaim
	}

	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// SplitToken returns the header, payload and signature segments. ok is false unless
// the token has exactly three non-empty parts; callers treat that as no credential.
func SplitToken(token string) (header, payload, signature string, ok bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// Verify checks signature, expiry and claim shape. It never returns an error:
// any failure yields ok=false and must be treated as unauthenticated.
//
// exp has whole-second resolution and a token stays valid through the second it
// names: it is rejected only once now is past exp.
func (tm *TokenManager) Verify(token string) (Identity, bool) {
	if !tm.Configured() {
		return Identity{}, false
	}
	if _, _, _, ok := SplitToken(token); !ok {
		return Identity{}, false
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return tm.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.verifyClock),
		jwt.WithLeeway(time.Second),
		jwt.WithStrictDecoding(),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, false
	}

	if strings.TrimSpace(claims.Subject) == "" || !claims.Role.Valid() {
		return Identity{}, false
	}
	return Identity{UserID: claims.Subject, Role: claims.Role}, true
}
