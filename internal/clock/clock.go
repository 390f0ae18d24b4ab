package clock

import "time"

// Clock abstracts time.Now so merges and tests are deterministic.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewReal() Clock { return realClock{} }

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// NewFixed returns a clock pinned to now.
func NewFixed(now time.Time) Clock { return fixedClock{now: now} }
