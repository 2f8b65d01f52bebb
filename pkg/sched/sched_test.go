package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_FiresInDueOrder(t *testing.T) {
	m := NewManual()
	var order []string
	m.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	m.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	m.AfterFunc(2*time.Second, func() { order = append(order, "c") })

	m.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, order)
	assert.Equal(t, 2, m.Pending())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_Stop(t *testing.T) {
	m := NewManual()
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	m.Advance(time.Minute)
	assert.False(t, fired)
}

func TestManual_NestedScheduling(t *testing.T) {
	m := NewManual()
	count := 0
	m.AfterFunc(time.Second, func() {
		count++
		m.AfterFunc(time.Second, func() { count++ })
	})
	m.Advance(3 * time.Second)
	assert.Equal(t, 2, count)
}

func TestGroup_DedupAndCancel(t *testing.T) {
	m := NewManual()
	g := NewGroup(m)

	var fired int32
	assert.True(t, g.Schedule("issue-1", time.Second, func() { atomic.AddInt32(&fired, 1) }))
	assert.False(t, g.Schedule("issue-1", time.Second, func() { atomic.AddInt32(&fired, 1) }))
	assert.True(t, g.Pending("issue-1"))

	m.Advance(time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.False(t, g.Pending("issue-1"))

	assert.True(t, g.Schedule("issue-2", time.Second, func() { atomic.AddInt32(&fired, 1) }))
	assert.True(t, g.Cancel("issue-2"))
	assert.False(t, g.Cancel("issue-2"))
	m.Advance(time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestGroup_StopCancelsAll(t *testing.T) {
	m := NewManual()
	g := NewGroup(m)
	fired := false
	g.Schedule("a", time.Second, func() { fired = true })
	g.Schedule("b", time.Second, func() { fired = true })
	assert.Equal(t, []string{"a", "b"}, g.Keys())

	g.Stop()
	m.Advance(time.Minute)
	assert.False(t, fired)
	assert.Empty(t, g.Keys())
}

func TestGroup_RealClock(t *testing.T) {
	g := NewGroup(nil)
	done := make(chan struct{})
	g.Schedule("x", 10*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}
