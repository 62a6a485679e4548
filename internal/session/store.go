package session

import (
	"context"
	"time"
)

// Store persists sessions and, separately, the authorization flag of each
// session id so that resetting a session never logs it out.
//
// note: fault injection point
type Store interface {
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (Session, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
	// DeleteBefore removes sessions last updated before cutoff, along
	// with their authorization, and returns how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)

	Authorize(ctx context.Context, id string, at time.Time) error
	Deauthorize(ctx context.Context, id string) error
	// Authorized reports whether id holds an authorization, and keeps a
	// held one alive.
	Authorized(ctx context.Context, id string) (bool, error)

	// Claim atomically takes the extraction run of id until now+lease. It
	// returns false while another unexpired claim is held, from this process
	// or any other sharing the store.
	Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error)
	Unclaim(ctx context.Context, id string) error
}
