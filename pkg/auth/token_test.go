package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

var testSecret = []byte("unit-test-secret")

func TestSession_RoundTrip(t *testing.T) {
	in := Principal{UserID: "u-1", Email: "ada@example.test", OrgID: "o-1"}

	token, err := IssueSession(testSecret, in, SessionDefault)
	require.NoError(t, err)

	out, err := ParseSession(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

func TestSession_WrongSecret(t *testing.T) {
	token, err := IssueSession(testSecret, Principal{UserID: "u-1", OrgID: "o-1"}, SessionDefault)
	require.NoError(t, err)

	_, err = ParseSession([]byte("other-secret"), token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestSession_Garbage(t *testing.T) {
	_, err := ParseSession(testSecret, "not.a.token")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestSession_Expired(t *testing.T) {
	// 直接构造过期令牌
	claims := sessionClaims{
		UserID: "u-1",
		OrgID:  "o-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = ParseSession(testSecret, token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestSessionKind_TTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, SessionDefault.TTL())
	assert.Equal(t, 30*24*time.Hour, SessionRemember.TTL())
	assert.Equal(t, 7*24*time.Hour, SessionOAuth.TTL())
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2hunter2"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestGenerateVerificationCode(t *testing.T) {
	code, err := GenerateVerificationCode()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}
