package cupboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr error
	}{
		{types.BackendSQLite, nil},
		{types.BackendPostgres, nil},
		{types.BackendMemory, nil},
		{"", types.ErrBackendEmpty},
		{"dynamo", types.ErrBackendUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cup, err := New(tt.backend, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cup)
		})
	}
}

func TestOpenSQLite(t *testing.T) {
	cup, err := Open(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer cup.Detach()
	for _, name := range types.StandardTableNames {
		_, err := cup.GetTable(name)
		assert.NoError(t, err, name)
	}
}
