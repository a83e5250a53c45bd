package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func TestPrepare(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		id      string
		data    any
		wantID  string
		wantErr error
	}{
		{name: "explicit id wins", table: types.TableForms, id: "f1", data: &types.Form{FormID: "other"}, wantID: "f1"},
		{name: "entity id used", table: types.TableForms, data: &types.Form{FormID: "other"}, wantID: "other"},
		{name: "wrong entity type", table: types.TableForms, data: &types.Agent{}, wantErr: types.ErrInvalidData},
		{name: "not an entity", table: types.TableForms, data: "form", wantErr: types.ErrInvalidData},
		{name: "typed nil", table: types.TableForms, data: (*types.Form)(nil), wantErr: types.ErrInvalidData},
		{name: "unknown table", table: "nosuch", data: &types.Form{}, wantErr: types.ErrTableNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, id, err := Prepare(tt.table, tt.id, tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantID, e.EntityID())
		})
	}
}

func TestPrepareGeneratesID(t *testing.T) {
	sub := &types.Submission{}
	_, id, err := Prepare(types.TableSubmissions, "", sub)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, id, sub.SubmissionID)
}

func TestEncodeDecodeMatches(t *testing.T) {
	a := &types.Agent{AgentID: "a1", Email: "ann@example.com", OwnerID: "t1"}
	body, err := Encode(a)
	require.NoError(t, err)

	e, err := Decode(types.TableAgents, body)
	require.NoError(t, err)
	assert.Equal(t, a, e)

	tests := []struct {
		filter types.Filter
		want   bool
	}{
		{nil, true},
		{types.Filter{"owner_id": "t1"}, true},
		{types.Filter{"owner_id": "t1", "email": "ann@example.com"}, true},
		{types.Filter{"owner_id": "t2"}, false},
		{types.Filter{"nickname": "ann"}, false},
	}
	for _, tt := range tests {
		got, err := Matches(body, tt.filter)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.filter)
	}
}
