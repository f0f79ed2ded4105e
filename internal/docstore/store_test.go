package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		path       string
		collection string
		docID      string
		wantErr    bool
	}{
		{path: "artifacts/app/users/u1/tasks", collection: "artifacts/app/users/u1/tasks"},
		{path: "/artifacts/app/users/u1/settings/profile", collection: "artifacts/app/users/u1/settings", docID: "profile"},
		{path: "tasks", collection: "tasks"},
		{path: "", wantErr: true},
		{path: "users//tasks", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := parsePath(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.collection, p.collection)
			assert.Equal(t, tt.docID, p.docID)
		})
	}
}

func TestDocAndCollectionPathGuards(t *testing.T) {
	_, err := docPath("users/u1/tasks")
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = collectionPath("users/u1/settings/profile")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestMergeData_KeepsUntouchedFields(t *testing.T) {
	merged, err := mergeData([]byte(`{"theme":"dark","appMode":"budget"}`), Data{"theme": "light"})
	require.NoError(t, err)

	data, err := decode(merged)
	require.NoError(t, err)
	assert.Equal(t, Data{"theme": "light", "appMode": "budget"}, data)
}

func TestDecode_UsesJSONNumber(t *testing.T) {
	data, err := decode([]byte(`{"amount":12.50,"createdAt":1700000000000}`))
	require.NoError(t, err)

	assert.Equal(t, json.Number("12.50"), data["amount"])
	assert.Equal(t, json.Number("1700000000000"), data["createdAt"])

	empty, err := decode(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
