package model

import (
	"fmt"
	"sort"
	"strings"
)

// Task is a single to-do item of a user.
type Task struct {
	ID        string
	Text      string
	Completed bool
	// CreatedAt is Unix milliseconds.
	CreatedAt int64
}

// TaskFromData maps a stored document onto a Task.
func TaskFromData(id string, data map[string]any) (Task, error) {
	text := strings.TrimSpace(stringField(data, "text"))
	if text == "" {
		return Task{}, fmt.Errorf("%w: task %s has empty text", ErrInvalidDocument, id)
	}
	createdAt, err := int64Field(data, "createdAt")
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:        id,
		Text:      text,
		Completed: boolField(data, "completed"),
		CreatedAt: createdAt,
	}, nil
}

// NewTaskData builds the document written on task creation.
func NewTaskData(text string, createdAt int64) map[string]any {
	return map[string]any{
		"text":      text,
		"completed": false,
		"createdAt": createdAt,
	}
}

// TaskLess orders incomplete tasks before completed ones, newest first inside
// each group.
func TaskLess(a, b Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	return a.CreatedAt > b.CreatedAt
}

// SortTasks sorts tasks in place using TaskLess.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return TaskLess(tasks[i], tasks[j])
	})
}
