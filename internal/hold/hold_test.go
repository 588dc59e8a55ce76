package hold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handbooth/internal/detector"
	"github.com/ayusman/handbooth/internal/gesture"
)

const frame = 16 * time.Millisecond

var base = time.Unix(1_700_000_000, 0)

func at(n int) time.Time {
	return base.Add(time.Duration(n) * frame)
}

func obs(handID int, label gesture.Label) Observation {
	return Observation{HandID: handID, Label: label, Anchor: detector.Point2D{X: 0.5, Y: 0.5}}
}

func TestDwellConfirmsOnThreshold(t *testing.T) {
	acc := New(DefaultConfig())
	key := Key{HandID: 1, Label: gesture.TwoFingers}

	prev := 0.0
	for n := 1; n < 188; n++ {
		res := acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n))
		require.Empty(t, res.Confirmed, "frame %d", n)

		p := res.Progress[key]
		assert.GreaterOrEqual(t, p, prev, "progress went backwards at frame %d", n)
		assert.Less(t, p, 1.0)
		prev = p
	}

	res := acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(188))
	assert.Equal(t, []Key{key}, res.Confirmed)
	assert.NotContains(t, res.Progress, key)
	assert.Equal(t, []gesture.Label{gesture.TwoFingers}, res.Suppressed)
	assert.True(t, acc.Suppressed(gesture.TwoFingers))
}

func TestNoDoubleConfirmWhileHeld(t *testing.T) {
	acc := New(DefaultConfig())
	confirms := 0
	n := 0
	for ; n < 1000; n++ {
		res := acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n+1))
		confirms += len(res.Confirmed)
	}
	assert.Equal(t, 1, confirms)
	assert.Zero(t, acc.Progress(Key{HandID: 1, Label: gesture.TwoFingers}))

	// One frame without the label releases it
	res := acc.Tick(nil, frame, at(n+1))
	assert.Empty(t, res.Suppressed)
	assert.False(t, acc.Suppressed(gesture.TwoFingers))

	n++
	res = acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n+1))
	assert.Empty(t, res.Confirmed)
	assert.InDelta(t, float64(frame)/float64(3*time.Second), res.Progress[Key{HandID: 1, Label: gesture.TwoFingers}], 1e-9)
}

func TestSuppressionSpansHands(t *testing.T) {
	acc := New(DefaultConfig())
	n := 0
	// Hand 1 starts 50 frames ahead of hand 2
	for ; n < 50; n++ {
		acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n+1))
	}
	var confirmed []Key
	for ; n < 188; n++ {
		res := acc.Tick([]Observation{obs(1, gesture.TwoFingers), obs(2, gesture.TwoFingers)}, frame, at(n+1))
		confirmed = append(confirmed, res.Confirmed...)
	}
	require.Equal(t, []Key{{HandID: 1, Label: gesture.TwoFingers}}, confirmed)
	assert.Zero(t, acc.Progress(Key{HandID: 2, Label: gesture.TwoFingers}))

	// Hand 1 leaves, hand 2 keeps the pose: still suppressed
	for i := 0; i < 300; i++ {
		n++
		res := acc.Tick([]Observation{obs(2, gesture.TwoFingers)}, frame, at(n))
		require.Empty(t, res.Confirmed)
		assert.Empty(t, res.Progress)
	}
	assert.True(t, acc.Suppressed(gesture.TwoFingers))
}

func TestSuppressionIsPerLabel(t *testing.T) {
	acc := New(DefaultConfig())
	for n := 1; n <= 188; n++ {
		acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n))
	}
	require.True(t, acc.Suppressed(gesture.TwoFingers))

	res := acc.Tick([]Observation{obs(1, gesture.TwoFingers), obs(2, gesture.OkHand)}, frame, at(189))
	assert.Contains(t, res.Progress, Key{HandID: 2, Label: gesture.OkHand})
	assert.False(t, acc.Suppressed(gesture.OkHand))
}

func TestGraceBridgesDropouts(t *testing.T) {
	key := Key{HandID: 1, Label: gesture.TwoFingers}

	t.Run("short gap keeps accumulating", func(t *testing.T) {
		acc := New(DefaultConfig())
		for n := 1; n <= 10; n++ {
			acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n))
		}
		// 336ms since last seen at frame 31
		for n := 11; n <= 31; n++ {
			res := acc.Tick(nil, frame, at(n))
			require.Contains(t, res.Progress, key)
		}
		acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(32))
		assert.Equal(t, 32*frame, acc.Accumulated(key))
	})

	t.Run("long gap evicts", func(t *testing.T) {
		acc := New(DefaultConfig())
		for n := 1; n <= 10; n++ {
			acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n))
		}
		var res Result
		for n := 11; n <= 32; n++ {
			res = acc.Tick(nil, frame, at(n))
		}
		assert.NotContains(t, res.Progress, key)
		assert.Zero(t, acc.Progress(key))

		acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(33))
		assert.Equal(t, frame, acc.Accumulated(key))
	})

	t.Run("confirms only when observed", func(t *testing.T) {
		acc := New(DefaultConfig())
		for n := 1; n <= 186; n++ {
			acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(n))
		}
		res := acc.Tick(nil, frame, at(187))
		assert.Empty(t, res.Confirmed)
		res = acc.Tick(nil, frame, at(188))
		assert.Empty(t, res.Confirmed)
		assert.Equal(t, 1.0, res.Progress[key])

		res = acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(189))
		assert.Equal(t, []Key{key}, res.Confirmed)
	})
}

func TestIgnoresNoneAndUntracked(t *testing.T) {
	acc := New(DefaultConfig())
	res := acc.Tick([]Observation{obs(1, gesture.None), obs(0, gesture.TwoFingers)}, frame, at(1))
	assert.Empty(t, res.Progress)
	assert.Empty(t, res.Confirmed)
}

func TestConfirmOrderFollowsObservations(t *testing.T) {
	acc := New(DefaultConfig())
	var res Result
	for n := 1; n <= 188; n++ {
		res = acc.Tick([]Observation{obs(3, gesture.OkHand), obs(1, gesture.TwoFingers)}, frame, at(n))
	}
	assert.Equal(t, []Key{
		{HandID: 3, Label: gesture.OkHand},
		{HandID: 1, Label: gesture.TwoFingers},
	}, res.Confirmed)
	assert.Equal(t, []gesture.Label{gesture.TwoFingers, gesture.OkHand}, res.Suppressed)
}

func TestWavePolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = Wave
	key := Key{HandID: 1, Label: gesture.OpenPalm}

	waving := func(n int) Observation {
		o := obs(1, gesture.OpenPalm)
		if n%2 == 0 {
			o.Anchor.X += 0.02
		}
		return o
	}

	t.Run("still hand earns nothing", func(t *testing.T) {
		acc := New(cfg)
		for n := 1; n <= 300; n++ {
			res := acc.Tick([]Observation{obs(1, gesture.OpenPalm)}, frame, at(n))
			require.Empty(t, res.Confirmed)
		}
		assert.Zero(t, acc.Progress(key))
	})

	t.Run("waving hand confirms", func(t *testing.T) {
		acc := New(cfg)
		confirmedAt := 0
		for n := 1; n <= 400 && confirmedAt == 0; n++ {
			res := acc.Tick([]Observation{waving(n)}, frame, at(n))
			if len(res.Confirmed) > 0 {
				confirmedAt = n
			}
		}
		// Motion is detected from the third sample
		assert.Equal(t, 190, confirmedAt)
	})

	t.Run("stopping pauses without reset", func(t *testing.T) {
		acc := New(cfg)
		n := 1
		for ; n <= 100; n++ {
			acc.Tick([]Observation{waving(n)}, frame, at(n))
		}
		var last time.Duration
		for i := 0; i < 200; i++ {
			acc.Tick([]Observation{obs(1, gesture.OpenPalm)}, frame, at(n))
			n++
			last = acc.Accumulated(key)
		}
		require.NotZero(t, last)
		for i := 0; i < 50; i++ {
			acc.Tick([]Observation{obs(1, gesture.OpenPalm)}, frame, at(n))
			n++
		}
		assert.Equal(t, last, acc.Accumulated(key))
	})

	t.Run("absent hand earns only within motion grace", func(t *testing.T) {
		acc := New(cfg)
		n := 1
		for ; n <= 100; n++ {
			acc.Tick([]Observation{waving(n)}, frame, at(n))
		}

		// Dropped right after waving: the gap still counts.
		before := acc.Accumulated(key)
		for i := 0; i < 5; i++ {
			acc.Tick(nil, frame, at(n))
			n++
		}
		assert.Equal(t, before+5*frame, acc.Accumulated(key))

		// Still long past the grace window, then dropped: nothing is earned.
		for i := 0; i < 100; i++ {
			acc.Tick([]Observation{obs(1, gesture.OpenPalm)}, frame, at(n))
			n++
		}
		still := acc.Accumulated(key)
		for i := 0; i < 10; i++ {
			acc.Tick(nil, frame, at(n))
			n++
		}
		assert.Equal(t, still, acc.Accumulated(key))
		assert.Positive(t, acc.Progress(key), "entry survives the dropout")
	})
}

func TestReset(t *testing.T) {
	acc := New(DefaultConfig())
	for n := 1; n <= 188; n++ {
		acc.Tick([]Observation{obs(1, gesture.TwoFingers), obs(2, gesture.OkHand)}, frame, at(n))
	}
	acc.Reset()
	assert.False(t, acc.Suppressed(gesture.TwoFingers))
	res := acc.Tick([]Observation{obs(1, gesture.TwoFingers)}, frame, at(189))
	assert.Len(t, res.Progress, 1)
}

func TestPolicyText(t *testing.T) {
	var p Policy
	require.NoError(t, p.UnmarshalText([]byte("wave")))
	assert.Equal(t, Wave, p)
	text, err := Dwell.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "dwell", string(text))
	assert.Error(t, p.UnmarshalText([]byte("hover")))
}
