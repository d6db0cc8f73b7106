package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService([]byte("test-secret"), "HS256", 15*time.Minute)
	require.NoError(t, err)
	return svc
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	subjects := []string{
		"user@example.com",
		"admin@crm.local",
		"a",
	}
	for _, sub := range subjects {
		sub := sub
		t.Run(sub, func(t *testing.T) {
			t.Parallel()

			raw, err := svc.Issue(sub)
			require.NoError(t, err)
			require.NotEmpty(t, raw)

			got, err := svc.Verify(raw)
			require.NoError(t, err)
			assert.Equal(t, sub, got)
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	raw, err := svc.IssueWithTTL("user@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongKey(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	other, err := NewService([]byte("another-secret"), "HS256", 15*time.Minute)
	require.NoError(t, err)

	raw, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MissingSubject(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	raw, err := svc.Issue("")
	require.NoError(t, err)

	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	_, err := svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewService_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	_, err := NewService([]byte("secret"), "RS256", time.Minute)
	require.Error(t, err)
}
