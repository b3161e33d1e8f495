package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-32-bytes-long"

func newTestManager() *Manager {
	return NewManager(testSecret, "profilehub", "profilehub-clients", 30*time.Minute)
}

func TestIssue_RoundTrip(t *testing.T) {
	m := newTestManager()

	token, expiresAt, err := m.Issue("ada@example.com")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email())
	assert.Equal(t, "profilehub", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"profilehub-clients"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
}

func TestIssue_TokensDifferWithinTheSameSecond(t *testing.T) {
	m := newTestManager()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	a, _, err := m.Issue("ada@example.com")
	require.NoError(t, err)
	b, _, err := m.Issue("ada@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestIssue_RequiresSubject(t *testing.T) {
	_, _, err := newTestManager().Issue("")
	require.Error(t, err)
}

func TestVerifyAccessToken_Rejects(t *testing.T) {
	m := newTestManager()
	valid, _, err := m.Issue("ada@example.com")
	require.NoError(t, err)

	expired := NewManager(testSecret, "profilehub", "profilehub-clients", -time.Second)
	expiredToken, _, err := expired.Issue("ada@example.com")
	require.NoError(t, err)

	otherIssuer, _, err := NewManager(testSecret, "someone-else", "profilehub-clients", time.Hour).Issue("ada@example.com")
	require.NoError(t, err)

	otherAudience, _, err := NewManager(testSecret, "profilehub", "another-app", time.Hour).Issue("ada@example.com")
	require.NoError(t, err)

	otherSecret, _, err := NewManager("a-completely-different-32b-secret", "profilehub", "profilehub-clients", time.Hour).Issue("ada@example.com")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "ada@example.com",
		"iss": "profilehub",
		"aud": "profilehub-clients",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "profilehub",
		"aud": "profilehub-clients",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ada@example.com",
		"iss": "profilehub",
		"aud": "profilehub-clients",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":        expiredToken,
		"wrong_issuer":   otherIssuer,
		"wrong_audience": otherAudience,
		"wrong_secret":   otherSecret,
		"alg_none":       noneAlg,
		"no_subject":     noSubject,
		"no_expiry":      noExpiry,
		"tampered":       valid[:len(valid)-3] + "xxx",
		"empty":          "",
		"garbage":        "not.a.jwt",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.VerifyAccessToken(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}
