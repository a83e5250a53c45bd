package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func TestFetchQuery(t *testing.T) {
	q, args := fetchQuery("forms", types.Filter{"owner_id": "t1", "field_id": "n1"})
	assert.Equal(t, "SELECT body FROM documents WHERE collection = $1 AND body->>$2 = $3 AND owner_id = $4 ORDER BY seq", q)
	assert.Equal(t, []any{"forms", "field_id", "n1", "t1"}, args)

	q, args = fetchQuery("agents", nil)
	assert.Equal(t, "SELECT body FROM documents WHERE collection = $1 ORDER BY seq", q)
	assert.Equal(t, []any{"agents"}, args)
}

func TestAttachRequiresDSN(t *testing.T) {
	b := NewBackend(nil)
	err := b.Attach(types.Config{Backend: types.BackendPostgres, PostgresConfig: &types.PostgresConfig{}})
	assert.ErrorIs(t, err, types.ErrDSNEmpty)
	_, err = b.GetTable(types.TableForms)
	assert.ErrorIs(t, err, types.ErrCupboardDetached)
}

// startPostgres runs a throwaway Postgres container.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "fieldforms",
			"POSTGRES_USER":     "fieldforms",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://fieldforms:test_password@%s:%s/fieldforms?sslmode=disable", host, port.Port())
}

func TestBackend_Integration(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()
	cfg := types.Config{Backend: types.BackendPostgres, PostgresConfig: &types.PostgresConfig{DSN: dsn}}

	b := NewBackend(nil)
	require.NoError(t, b.Attach(cfg))
	assert.ErrorIs(t, b.Attach(cfg), types.ErrAlreadyAttached)

	forms, err := b.GetTable(types.TableForms)
	require.NoError(t, err)

	for _, f := range []*types.Form{
		{FormID: "f1", Name: "A", FieldID: "north", OwnerID: "t1"},
		{FormID: "f2", Name: "B", FieldID: "south", OwnerID: "t1"},
		{FormID: "f3", Name: "C", FieldID: "north", OwnerID: "t2"},
	} {
		_, err := forms.Set(ctx, "", f)
		require.NoError(t, err)
	}

	got, err := forms.Get(ctx, "f2")
	require.NoError(t, err)
	assert.Equal(t, "B", got.(*types.Form).Name)

	res, err := forms.Fetch(ctx, types.Filter{"owner_id": "t1", "field_id": "north"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "f1", res[0].(*types.Form).FormID)

	require.NoError(t, forms.Delete(ctx, "f1"))
	assert.ErrorIs(t, forms.Delete(ctx, "f1"), types.ErrNotFound)
	_, err = forms.Get(ctx, "f1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	// Collections do not see each other's documents.
	agents, err := b.GetTable(types.TableAgents)
	require.NoError(t, err)
	all, err := agents.Fetch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach())

	// Migrations are idempotent and data survives a reattach.
	b2 := NewBackend(nil)
	require.NoError(t, b2.Attach(cfg))
	defer b2.Detach()
	forms2, err := b2.GetTable(types.TableForms)
	require.NoError(t, err)
	left, err := forms2.Fetch(ctx, types.Filter{"owner_id": "t1"})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
