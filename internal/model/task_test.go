package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortTasks_IncompleteFirstNewestFirst(t *testing.T) {
	tasks := []Task{
		{ID: "a", Completed: false, CreatedAt: 1},
		{ID: "b", Completed: true, CreatedAt: 5},
		{ID: "c", Completed: false, CreatedAt: 3},
	}

	SortTasks(tasks)

	got := []int64{tasks[0].CreatedAt, tasks[1].CreatedAt, tasks[2].CreatedAt}
	assert.Equal(t, []int64{3, 1, 5}, got)
}

func TestSortTasks_CompletedNewestFirst(t *testing.T) {
	tasks := []Task{
		{ID: "old", Completed: true, CreatedAt: 10},
		{ID: "open", Completed: false, CreatedAt: 1},
		{ID: "new", Completed: true, CreatedAt: 20},
	}

	SortTasks(tasks)

	assert.Equal(t, "open", tasks[0].ID)
	assert.Equal(t, "new", tasks[1].ID)
	assert.Equal(t, "old", tasks[2].ID)
}

func TestTaskFromData(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		want    Task
		wantErr bool
	}{
		{
			name: "json number",
			data: map[string]any{"text": " buy milk ", "completed": true, "createdAt": json.Number("1700000000000")},
			want: Task{ID: "t1", Text: "buy milk", Completed: true, CreatedAt: 1700000000000},
		},
		{
			name: "float createdAt",
			data: map[string]any{"text": "walk", "createdAt": float64(42)},
			want: Task{ID: "t1", Text: "walk", CreatedAt: 42},
		},
		{
			name:    "empty text",
			data:    map[string]any{"text": "  "},
			wantErr: true,
		},
		{
			name:    "bad createdAt",
			data:    map[string]any{"text": "x", "createdAt": []int{1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TaskFromData("t1", tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDocument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTaskData(t *testing.T) {
	data := NewTaskData("read", 7)

	assert.Equal(t, map[string]any{"text": "read", "completed": false, "createdAt": int64(7)}, data)
}
