package chrono

import (
	"context"
	"time"
	_ "time/tzdata"
)

var london *time.Location

func init() {
	var err error
	london, err = time.LoadLocation("Europe/London")
	if err != nil {
		panic(err)
	}
}

// London returns the [*time.Location] the registry publishes its dates in.
func London() *time.Location {
	return london
}

// API is the interface anything depending on the system clock or on waiting
// should use.
//
// note: fault injection point
type API interface {
	// Now returns the current time in Europe/London.
	Now() time.Time
	// Pause blocks for `d` or until ctx is done, in which case it returns ctx.Err().
	Pause(ctx context.Context, d time.Duration) error
}

// StandardImpl is the implementation of API backed by the standard library.
type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now().In(london)
}

func (StandardImpl) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
