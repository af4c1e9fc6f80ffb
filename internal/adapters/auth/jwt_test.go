package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dkeye/clanchat/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_IssueAndVerify(t *testing.T) {
	v := NewJWTVerifier(Config{Secret: "test-secret", Issuer: "clanchat", TTL: time.Hour})

	token, err := v.Issue("u1", "alice")
	require.NoError(t, err)

	user, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestJWTVerifier_LongDisplayName(t *testing.T) {
	v := NewJWTVerifier(Config{Secret: "test-secret", TTL: time.Hour})
	name := strings.Repeat("x", 40)

	token, err := v.Issue("u1", name)
	require.NoError(t, err)

	user, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, name, user.Username)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier(Config{Secret: "test-secret", Issuer: "clanchat", TTL: time.Hour})
	good, err := v.Issue("u1", "alice")
	require.NoError(t, err)

	other := NewJWTVerifier(Config{Secret: "other-secret", Issuer: "clanchat"})
	forged, err := other.Issue("u1", "alice")
	require.NoError(t, err)

	wrongIssuer := NewJWTVerifier(Config{Secret: "test-secret", Issuer: "someone-else"})
	foreign, err := wrongIssuer.Issue("u1", "alice")
	require.NoError(t, err)

	noName, err := v.Issue("u1", "")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "u1", Username: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"malformed", "not-a-token"},
		{"truncated", good[:len(good)-4]},
		{"bad signature", forged},
		{"wrong issuer", foreign},
		{"missing username", noName},
		{"alg none", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := v.Verify(tt.token)
			assert.Nil(t, user)
			assert.ErrorIs(t, err, domain.ErrAuth)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier(Config{Secret: "test-secret", TTL: time.Minute})
	v.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := v.Issue("u1", "alice")
	require.NoError(t, err)

	v.now = time.Now
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.ErrorIs(t, err, domain.ErrAuth)
}
