package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstream/client-sdk-go/limits"
)

func TestNewPacer(t *testing.T) {
	p, err := NewPacer(limits.DefaultSendBudgetBytesPerSecond)
	require.NoError(t, err)
	assert.Equal(t, limits.DefaultSendBudgetBytesPerSecond, p.BytesPerSecond)

	_, err = NewPacer(0)
	assert.Error(t, err)
	_, err = NewPacer(-5)
	assert.Error(t, err)
}

func TestMinimumSendTime(t *testing.T) {
	tests := []struct {
		name       string
		budget     int
		frameBytes int
		want       time.Duration
	}{
		{
			name:       "default budget full frame",
			budget:     6000,
			frameBytes: 950,
			// 950/6000 s = 158.33ms, rounded up
			want: 159 * time.Millisecond,
		},
		{
			name:       "one second of budget",
			budget:     6000,
			frameBytes: 6000,
			want:       time.Second,
		},
		{
			name:       "single byte rounds up to a millisecond",
			budget:     6000,
			frameBytes: 1,
			want:       time.Millisecond,
		},
		{
			name:       "exact millisecond boundary",
			budget:     6000,
			frameBytes: 600,
			want:       100 * time.Millisecond,
		},
		{
			name:       "zero bytes",
			budget:     6000,
			frameBytes: 0,
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPacer(tt.budget)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.MinimumSendTime(tt.frameBytes))
		})
	}
}

func TestDelay(t *testing.T) {
	p, err := NewPacer(6000)
	require.NoError(t, err)

	// nothing elapsed: wait the full minimum
	assert.Equal(t, 159*time.Millisecond, p.Delay(950, 0))

	// partially elapsed: wait the remainder
	assert.Equal(t, 59*time.Millisecond, p.Delay(950, 100*time.Millisecond))

	// already slower than the budget: no extra wait
	assert.Equal(t, time.Duration(0), p.Delay(950, 200*time.Millisecond))
	assert.Equal(t, time.Duration(0), p.Delay(950, 159*time.Millisecond))
}

// TestDelayLowerBound checks that elapsed plus delay never undershoots the
// byte budget across a range of frame sizes.
func TestDelayLowerBound(t *testing.T) {
	p, err := NewPacer(6000)
	require.NoError(t, err)

	for _, size := range []int{1, 10, 100, 537, 950, 6000, 9000} {
		for _, elapsed := range []time.Duration{0, time.Millisecond, 50 * time.Millisecond, time.Second} {
			total := elapsed + p.Delay(size, elapsed)
			floor := time.Duration(size) * time.Second / 6000
			assert.GreaterOrEqual(t, total, floor,
				"size %d elapsed %s paces below budget", size, elapsed)
		}
	}
}
