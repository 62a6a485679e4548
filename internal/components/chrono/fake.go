package chrono

import (
	"context"
	"sync"
	"time"
)

// Fake is an API whose clock only moves when paused, every pause is recorded.
type Fake struct {
	mutex  sync.Mutex
	now    time.Time
	pauses []time.Duration
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now.In(london)}
}

func (f *Fake) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

func (f *Fake) Pause(ctx context.Context, d time.Duration) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.pauses = append(f.pauses, d)
	f.now = f.now.Add(d)
	return ctx.Err()
}

func (f *Fake) Pauses() []time.Duration {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]time.Duration(nil), f.pauses...)
}
