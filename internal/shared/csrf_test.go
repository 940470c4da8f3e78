package shared_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-hq/atlas-console/internal/shared"
	_ "github.com/atlas-hq/atlas-console/testing"
)

func TestEnsureTokenIsStablePerSession(t *testing.T) {
	m := shared.NewCSRFManager("test-secret")
	sess := &shared.Session{ID: "sess-1"}

	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, token, again, "concurrent tabs share one token")
}

func TestVerifyToken(t *testing.T) {
	m := shared.NewCSRFManager("test-secret")
	sess := &shared.Session{ID: "sess-1"}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	require.NoError(t, m.VerifyToken(context.Background(), sess, token))
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, ""), shared.ErrCSRFTokenMissing)
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, "forged"), shared.ErrCSRFTokenMismatch)
	require.ErrorIs(t, m.VerifyToken(context.Background(), nil, token), shared.ErrCSRFTokenMissing)
}

func TestTokensDifferAcrossSessions(t *testing.T) {
	m := shared.NewCSRFManager("test-secret")
	a := &shared.Session{ID: "sess-a"}
	b := &shared.Session{ID: "sess-b"}

	tokenA, err := m.EnsureToken(context.Background(), a)
	require.NoError(t, err)
	tokenB, err := m.EnsureToken(context.Background(), b)
	require.NoError(t, err)

	require.NotEqual(t, tokenA, tokenB)
	require.ErrorIs(t, m.VerifyToken(context.Background(), a, tokenB), shared.ErrCSRFTokenMismatch)
}
