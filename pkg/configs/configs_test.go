package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetropolis_Defaults(t *testing.T) {
	m := NewMetropolis(-2, 1)
	assert.Equal(t, 0.5, m.Jump)
	assert.Equal(t, 0.4, m.ARLow)
	assert.Equal(t, 0.6, m.ARHigh)
	assert.Equal(t, 1.01, m.AdaptStep)
	assert.True(t, m.InRange(0.3))
	assert.False(t, m.InRange(1.5))
	assert.False(t, m.InRange(-2.1))
}

func TestMetropolis_AdaptationDirection(t *testing.T) {
	t.Run("high acceptance grows the step", func(t *testing.T) {
		m := NewMetropolis(-1, 1, WithTuning(100), WithJump(0.5))
		for i := 0; i < 10; i++ {
			m.Accept()
		}
		assert.Greater(t, m.Jump, 0.5)
	})

	t.Run("low acceptance shrinks the step", func(t *testing.T) {
		m := NewMetropolis(-1, 1, WithTuning(100), WithJump(0.5))
		for i := 0; i < 10; i++ {
			m.Reject()
		}
		assert.Less(t, m.Jump, 0.5)
	})

	t.Run("in-band acceptance leaves the step alone", func(t *testing.T) {
		m := NewMetropolis(-1, 1, WithTuning(100), WithJump(0.5),
			WithAcceptanceBounds(0, 1))
		m.Accept()
		m.Reject()
		assert.Equal(t, 0.5, m.Jump)
	})
}

func TestMetropolis_FreezeAfterBudget(t *testing.T) {
	m := NewMetropolis(-1, 1, WithTuning(5), WithJump(0.5))
	for i := 0; i < 5; i++ {
		m.Accept()
	}
	assert.False(t, m.Adapting())
	frozen := m.Jump

	// Further outcomes must not move the step size.
	for i := 0; i < 20; i++ {
		m.Reject()
	}
	assert.Equal(t, frozen, m.Jump)
}

func TestMetropolis_NoTuningByDefault(t *testing.T) {
	m := NewMetropolis(-1, 1)
	for i := 0; i < 50; i++ {
		m.Accept()
	}
	assert.Equal(t, 0.5, m.Jump, "tuning disabled when budget is zero")
}

func TestMetropolis_Clone(t *testing.T) {
	m := NewMetropolis(-1, 1, WithTuning(10))
	m.Accept()
	cp := m.Clone()
	cp.Reject()
	assert.Equal(t, 0, m.Rejected)
	assert.Equal(t, 1, cp.Rejected)
}
