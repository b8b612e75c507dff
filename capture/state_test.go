package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateCapturing, "capturing"},
		{StateStopping, "stopping"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestStateBoxTransitions(t *testing.T) {
	var b stateBox
	assert.Equal(t, StateStopped, b.Load(), "zero value is stopped")

	assert.False(t, b.CompareAndSwap(StateCapturing, StateStopping))
	assert.True(t, b.CompareAndSwap(StateStopped, StateStarting))
	assert.True(t, b.CompareAndSwap(StateStarting, StateCapturing))
	assert.Equal(t, StateCapturing, b.Load())

	b.Store(StateStopped)
	assert.Equal(t, StateStopped, b.Load())
}
