package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClockJitterBounds(t *testing.T) {
	c := New()
	for i := 0; i < 100; i++ {
		j := c.Jitter(10 * time.Millisecond)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 10*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), c.Jitter(0))
}

func TestFakeClockAdvanceFiresTimer(t *testing.T) {
	start := time.Unix(0, 0)
	fc := NewFake(start)

	timer := fc.NewTimer(50 * time.Millisecond)

	select {
	case <-timer.C():
		t.Fatal("timer fired before deadline")
	default:
	}

	fc.Advance(49 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	fc.Advance(1 * time.Millisecond)
	select {
	case fired := <-timer.C():
		assert.Equal(t, start.Add(50*time.Millisecond), fired)
	default:
		t.Fatal("timer did not fire at deadline")
	}
}

func TestFakeClockStopPreventsFire(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))
	timer := fc.NewTimer(10 * time.Millisecond)
	require.True(t, timer.Stop())
	fc.Advance(100 * time.Millisecond)

	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeClockFixedJitter(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))
	fc.SetJitter(3 * time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, fc.Jitter(10*time.Millisecond))
	// fixed jitter clamps below max when it would otherwise equal or exceed it.
	assert.Equal(t, 2*time.Millisecond, fc.Jitter(3*time.Millisecond))
}
