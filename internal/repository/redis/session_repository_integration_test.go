//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
)

func TestSessionRepository_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	defer client.Close()

	repo := NewSessionRepository(client, zap.NewNop())

	require.NoError(t, client.HSet(ctx, "session:admin-sid", "user_id", "ops-1", "role", "admin").Err())
	require.NoError(t, client.HSet(ctx, "session:user-sid", "user_id", "buyer-1").Err())

	t.Run("admin session", func(t *testing.T) {
		s, err := repo.GetSession(ctx, "admin-sid")
		require.NoError(t, err)
		require.Equal(t, "ops-1", s.UserID)
		require.True(t, s.IsAdmin())
	})

	t.Run("role defaults to user", func(t *testing.T) {
		s, err := repo.GetSession(ctx, "user-sid")
		require.NoError(t, err)
		require.Equal(t, repository.RoleUser, s.Role)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := repo.GetSession(ctx, "missing")
		require.ErrorIs(t, err, repository.ErrSessionNotFound)
	})
}
