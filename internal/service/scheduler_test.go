package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	removed int64
	err     error
	calls   int
}

func (p *stubPurger) PurgeDeletedTasks(context.Context) (int64, error) {
	p.calls++
	return p.removed, p.err
}

func TestSchedulerPurge(t *testing.T) {
	tests := []struct {
		name   string
		purger *stubPurger
		want   int64
	}{
		{name: "removes flagged tasks", purger: &stubPurger{removed: 3}, want: 3},
		{name: "nothing to remove", purger: &stubPurger{}, want: 0},
		{name: "store failure", purger: &stubPurger{removed: 5, err: stderrors.New("db down")}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewScheduler(tt.purger).Purge(context.Background())
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, tt.purger.calls)
		})
	}
}

func TestSchedulerSchedulePurge(t *testing.T) {
	s := NewScheduler(&stubPurger{})

	id, err := s.SchedulePurge("")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = s.SchedulePurge("*/15 * * * *")
	assert.NoError(t, err)

	_, err = s.SchedulePurge("every now and then")
	assert.Error(t, err)

	s.Start()
	s.Stop()
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		spec string
		want struct {
			error bool
		}
	}{
		{spec: "", want: struct{ error bool }{false}},
		{spec: "@hourly", want: struct{ error bool }{false}},
		{spec: "*/15 * * * *", want: struct{ error bool }{false}},
		{spec: "every now and then", want: struct{ error bool }{true}},
		{spec: "61 * * * *", want: struct{ error bool }{true}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			err := ValidateSchedule(tt.spec)
			assert.Equal(t, tt.want.error, err != nil)
			_, scheduleErr := NewScheduler(&stubPurger{}).SchedulePurge(tt.spec)
			assert.Equal(t, tt.want.error, scheduleErr != nil)
		})
	}
}
