package auth

import (
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	MinDuration    time.Duration // floor for a credential check
	Jitter         time.Duration // random extra delay, [0, Jitter)
	DelayOnSuccess bool
}

// TimingDelay pads credential checks so that unknown accounts, wrong
// passwords and unverified accounts take indistinguishable time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config, sleep: time.Sleep}
}

func (td *TimingDelay) jitter() time.Duration {
	if td.config.Jitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.Jitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// WaitFrom sleeps until at least MinDuration plus jitter has elapsed since start.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td == nil || (success && !td.config.DelayOnSuccess) {
		return
	}
	target := td.config.MinDuration + td.jitter()
	if elapsed := time.Since(start); elapsed < target {
		td.sleep(target - elapsed)
	}
}
