package round

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingUntilNextRound(t *testing.T) {
	genesis := time.Unix(1596117600, 0)
	tests := []struct {
		name    string
		elapsed time.Duration
		want    time.Duration
	}{
		{"at boundary", 60 * time.Second, 0},
		{"one second in", 61 * time.Second, 5 * time.Second},
		{"last second", 65 * time.Second, time.Second},
		{"rounds to nearest second", 62*time.Second + 600*time.Millisecond, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := genesis.Add(tt.elapsed)
			clock := NewClock(genesis, 6*time.Second, WithNow(func() time.Time { return now }))
			assert.Equal(t, tt.want, clock.RemainingUntilNextRound())
		})
	}
}

func TestNewClock_DefaultDuration(t *testing.T) {
	genesis := time.Unix(0, 0)
	clock := NewClock(genesis, 0, WithNow(func() time.Time { return genesis.Add(2 * time.Second) }))
	assert.Equal(t, 4*time.Second, clock.RemainingUntilNextRound())
}
