package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return &Service{Secret: []byte("test-secret-key")}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	token, err := svc.Issue("a@x.com", PurposeReset, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := svc.Verify(token, PurposeReset)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)
}

func TestVerify_PurposeMismatch(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	token, err := svc.Issue("a@x.com", PurposeReset, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(token, PurposeVerify)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_TamperedToken(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	token, err := svc.Issue("a@x.com", PurposeReset, time.Hour)
	require.NoError(t, err)

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(tampered, PurposeReset)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := newTestService().Issue("a@x.com", PurposeVerify, time.Hour)
	require.NoError(t, err)

	other := &Service{Secret: []byte("another-secret")}
	_, err = other.Verify(token, PurposeVerify)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	token, err := svc.Issue("a@x.com", PurposeReset, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token, PurposeReset)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_Garbage(t *testing.T) {
	t.Parallel()

	_, err := newTestService().Verify("not-a-jwt", PurposeReset)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	token, err := svc.IssueSession(7, "admin")
	require.NoError(t, err)

	claims, err := svc.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestSession_NotInterchangeableWithMailTokens(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	token, err := svc.IssueSession(7, "user")
	require.NoError(t, err)

	_, err = svc.Verify(token, PurposeReset)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
