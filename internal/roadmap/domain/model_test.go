package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		want     int
	}{
		{"empty", nil, 0},
		{"all skipped", []string{TaskSkipped, TaskSkipped}, 0},
		{"none done", []string{TaskTodo, TaskInProgress}, 0},
		{"one of three", []string{TaskDone, TaskTodo, TaskTodo}, 33},
		{"two of three", []string{TaskDone, TaskDone, TaskTodo}, 67},
		{"skipped excluded", []string{TaskDone, TaskSkipped, TaskTodo}, 50},
		{"all done", []string{TaskDone, TaskSkipped, TaskDone}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Progress(tc.statuses))
		})
	}
}
