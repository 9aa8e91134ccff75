// Package modifications holds the bundled units of work and the list they are
// registered from.
package modifications

import (
	"context"
	"math/rand/v2"
	"time"

	"datamod/internal/modification"
	"datamod/internal/platform/metrics"
)

const (
	CreateRandomUsersName = "CreateRandomUsersModification"
	DeleteAllUsersName    = "DeleteAllUsersModification"
)

// Config tunes the bundled modifications.
type Config struct {
	// Pace is the delay between creating two users. Deletions pause for two
	// thirds of it.
	Pace    time.Duration
	Metrics *metrics.Metrics
	Now     func() time.Time
	// Rand seeds username suffixes and the number of users created. Nil uses
	// the global source.
	Rand *rand.Rand
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) intN(n int) int {
	if c.Rand != nil {
		return c.Rand.IntN(n)
	}
	return rand.IntN(n)
}

// Register adds every bundled modification to reg, in listing order.
func Register(reg *modification.Registry, cfg Config) error {
	if err := reg.Register(CreateRandomUsersName,
		"Creates 3-5 random users with unique usernames and emails each time it runs.",
		func(deps modification.Deps) modification.Modification {
			return NewCreateRandomUsers(deps, cfg)
		},
	); err != nil {
		return err
	}
	return reg.Register(DeleteAllUsersName,
		"Deletes all users from the database. Use with caution!",
		func(deps modification.Deps) modification.Modification {
			return NewDeleteAllUsers(deps, cfg)
		},
	)
}

func modeLabel(mode modification.Mode) string {
	if mode.IsDryRun() {
		return "Dry Run"
	}
	return "Real Run"
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
