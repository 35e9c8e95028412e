package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestScheduleFiresOnceWhenDue(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	fired := 0
	task := s.Schedule(2*time.Second, func() { fired++ })

	s.Advance(time.Second)
	assert.Equal(t, 0, fired)
	assert.True(t, task.Active())

	s.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.False(t, task.Active())

	s.Advance(10 * time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduleRepeating(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	var at []time.Duration
	start := s.Now()
	s.ScheduleRepeating(time.Second, func() { at = append(at, s.Now().Sub(start)) })

	s.Advance(3500 * time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, at)
	assert.Equal(t, start.Add(3500*time.Millisecond), s.Now())
}

func TestCancelIsIdempotent(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	fired := false
	task := s.Schedule(time.Second, func() { fired = true })

	s.Cancel(task)
	s.Cancel(task)
	task.Cancel()
	s.Cancel(nil)

	s.Advance(5 * time.Second)
	assert.False(t, fired)
	assert.False(t, task.Active())
}

func TestCancelFiredTaskIsNoop(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	task := s.Schedule(0, func() {})
	s.Advance(0)
	require.False(t, task.Active())
	task.Cancel()
	assert.False(t, task.Active())
}

func TestRepeatingCancelledFromOwnCallback(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	count := 0
	var task *Task
	task = s.ScheduleRepeating(time.Second, func() {
		count++
		if count == 2 {
			task.Cancel()
		}
	})

	s.Advance(10 * time.Second)
	assert.Equal(t, 2, count)
	assert.False(t, task.Active())
}

func TestCallbackCanCancelLaterTask(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	var order []string
	var second *Task
	s.Schedule(time.Second, func() {
		order = append(order, "first")
		second.Cancel()
	})
	second = s.Schedule(time.Second, func() { order = append(order, "second") })

	s.Advance(2 * time.Second)
	assert.Equal(t, []string{"first"}, order)
}

func TestCallbackScheduledTaskRunsInSameAdvance(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	var order []string
	s.Schedule(time.Second, func() {
		order = append(order, "outer")
		s.Schedule(time.Second, func() { order = append(order, "inner") })
	})

	s.Advance(3 * time.Second)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestSameInstantRunsInSchedulingOrder(t *testing.T) {
	s := NewTicker(time.Unix(0, 0))
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.Schedule(time.Second, func() { order = append(order, i) })
	}
	s.Advance(time.Second)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestCancelledTasksNeverFire(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewTicker(time.Unix(0, 0))
		n := rapid.IntRange(1, 30).Draw(t, "tasks")
		tasks := make([]*Task, n)
		fired := make([]int, n)
		cancelled := make([]bool, n)

		for i := 0; i < n; i++ {
			i := i
			delay := time.Duration(rapid.IntRange(0, 5000).Draw(t, "delay")) * time.Millisecond
			if rapid.Bool().Draw(t, "repeating") {
				tasks[i] = s.ScheduleRepeating(delay+250*time.Millisecond, func() { fired[i]++ })
			} else {
				tasks[i] = s.Schedule(delay, func() { fired[i]++ })
			}
		}

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			i := rapid.IntRange(0, n-1).Draw(t, "cancel")
			if !cancelled[i] {
				before := fired[i]
				tasks[i].Cancel()
				cancelled[i] = true
				s.Advance(time.Duration(rapid.IntRange(0, 3000).Draw(t, "advance")) * time.Millisecond)
				if fired[i] != before {
					t.Fatalf("task %d fired after cancel", i)
				}
			} else {
				s.Advance(time.Duration(rapid.IntRange(0, 3000).Draw(t, "advance")) * time.Millisecond)
			}
			for j := range tasks {
				if cancelled[j] && tasks[j].Active() {
					t.Fatalf("cancelled task %d still active", j)
				}
			}
		}
	})
}
