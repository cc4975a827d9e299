package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartlog/rehab-api/internal/domain"
)

const testSecret = "test-secret-key-for-session-signing"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func signRaw(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenManager_RoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tm := NewTokenManager(testSecret, 0).WithClock(fixedClock(now))

	for _, role := range []domain.Role{domain.RolePatient, domain.RoleMedical} {
		token, exp, err := tm.Issue("u1", role)
		require.NoError(t, err)
		assert.Equal(t, now.Add(DefaultTokenTTL), exp)

		identity, ok := tm.Verify(token)
		require.True(t, ok)
		assert.Equal(t, Identity{UserID: "u1", Role: role}, identity)
	}
}

func TestTokenManager_IndependentInstancesAgree(t *testing.T) {
	issuer := NewTokenManager(testSecret, time.Hour)
	verifier := NewTokenManager(testSecret, time.Minute)

	token, _, err := issuer.Issue("u42", domain.RoleMedical)
	require.NoError(t, err)

	identity, ok := verifier.Verify(token)
	require.True(t, ok)
	assert.Equal(t, "u42", identity.UserID)
}

func TestTokenManager_WireFormat(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token, _, err := tm.Issue("u1", domain.RolePatient)
	require.NoError(t, err)

	header, payload, _, ok := SplitToken(token)
	require.True(t, ok)

	rawHeader, err := base64.RawURLEncoding.DecodeString(header)
	require.NoError(t, err)
	var h map[string]string
	require.NoError(t, json.Unmarshal(rawHeader, &h))
	assert.Equal(t, "HS256", h["alg"])

	rawPayload, err := base64.RawURLEncoding.DecodeString(payload)
	require.NoError(t, err)
	var p map[string]any
	require.NoError(t, json.Unmarshal(rawPayload, &p))
	assert.Equal(t, "u1", p["sub"])
	assert.Equal(t, "patient", p["role"])
	assert.Greater(t, p["exp"].(float64), p["iat"].(float64))
}

func TestTokenManager_TamperedSignature(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token, _, err := tm.Issue("u1", domain.RolePatient)
	require.NoError(t, err)

	header, payload, signature, ok := SplitToken(token)
	require.True(t, ok)

	for i := range signature {
		replacement := byte('A')
		if signature[i] == 'A' {
			replacement = 'B'
		}
		flipped := signature[:i] + string(replacement) + signature[i+1:]
		_, ok := tm.Verify(header + "." + payload + "." + flipped)
		assert.False(t, ok, "flipped signature char %d accepted", i)
	}
}

func TestTokenManager_TamperedPayload(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token, _, err := tm.Issue("u1", domain.RolePatient)
	require.NoError(t, err)

	header, _, signature, _ := SplitToken(token)
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u2","role":"medical"}`))

	_, ok := tm.Verify(header + "." + forged + "." + signature)
	assert.False(t, ok)
}

func TestTokenManager_Expiry(t *testing.T) {
	issuedAt := time.Now()
	issuer := NewTokenManager(testSecret, time.Second).WithClock(fixedClock(issuedAt))

	token, _, err := issuer.Issue("u1", domain.RolePatient)
	require.NoError(t, err)

	_, ok := issuer.Verify(token)
	assert.True(t, ok, "token valid right after issue")

	later := issuer.WithClock(fixedClock(issuedAt.Add(2 * time.Second)))
	_, ok = later.Verify(token)
	assert.False(t, ok, "token valid after ttl elapsed")
}

func TestTokenManager_ValidThroughExpirySecond(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	token := signRaw(t, jwt.SigningMethodHS256, testSecret, &Claims{
		Role: domain.RolePatient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	tm := NewTokenManager(testSecret, time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one second before", exp.Add(-time.Second), true},
		{"exactly at exp", exp, true},
		{"later in the exp second", exp.Add(999 * time.Millisecond), true},
		{"one second past", exp.Add(time.Second), false},
		{"long past", exp.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tm.WithClock(fixedClock(tt.now)).Verify(token)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestTokenManager_ExpiredEvenWithGoodSignature(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token := signRaw(t, jwt.SigningMethodHS256, testSecret, &Claims{
		Role: domain.RolePatient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, ok := tm.Verify(token)
	assert.False(t, ok)
}

func TestTokenManager_ExpiryOptional(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token := signRaw(t, jwt.SigningMethodHS256, testSecret, &Claims{
		Role:             domain.RoleMedical,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})

	identity, ok := tm.Verify(token)
	require.True(t, ok)
	assert.Equal(t, domain.RoleMedical, identity.Role)
}

func TestTokenManager_RejectsBadClaims(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two parts", "abc.def"},
		{"four parts", "a.b.c.d"},
		{"empty part", "a..c"},
		{"unknown role", signRaw(t, jwt.SigningMethodHS256, testSecret, &Claims{
			Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp},
		})},
		{"missing role", signRaw(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})},
		{"missing subject", signRaw(t, jwt.SigningMethodHS256, testSecret, &Claims{
			Role: domain.RolePatient, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp},
		})},
		{"non-string subject", signRaw(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": 7, "role": "patient"})},
		{"wrong secret", signRaw(t, jwt.SigningMethodHS256, "other-secret", &Claims{
			Role: domain.RolePatient, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp},
		})},
		{"other algorithm", signRaw(t, jwt.SigningMethodHS512, testSecret, &Claims{
			Role: domain.RolePatient, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, ok := tm.Verify(tt.token)
			assert.False(t, ok)
			assert.Empty(t, identity.UserID)
		})
	}
}

func TestTokenManager_AlgNone(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "role": "patient"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, ok := tm.Verify(token + "c2ln")
	assert.False(t, ok)
}

func TestTokenManager_NoSecret(t *testing.T) {
	tm := NewTokenManager("", time.Hour)
	assert.False(t, tm.Configured())

	_, _, err := tm.Issue("u1", domain.RolePatient)
	assert.ErrorIs(t, err, ErrMissingSecret)

	signed, _, err := NewTokenManager(testSecret, time.Hour).Issue("u1", domain.RolePatient)
	require.NoError(t, err)
	_, ok := tm.Verify(signed)
	assert.False(t, ok)
}

func TestTokenManager_IssueValidatesClaim(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	_, _, err := tm.Issue("", domain.RolePatient)
	assert.ErrorIs(t, err, ErrInvalidClaim)

	_, _, err = tm.Issue("u1", domain.Role("admin"))
	assert.ErrorIs(t, err, ErrInvalidClaim)
}

func TestSplitToken(t *testing.T) {
	h, p, s, ok := SplitToken("aa.bb.cc")
	require.True(t, ok)
	assert.Equal(t, []string{"aa", "bb", "cc"}, []string{h, p, s})

	for _, bad := range []string{"", "aa", "aa.bb", strings.Repeat("a.", 3) + "a"} {
		_, _, _, ok := SplitToken(bad)
		assert.False(t, ok, bad)
	}
}
