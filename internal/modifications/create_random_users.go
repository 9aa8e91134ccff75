package modifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"datamod/internal/modification"
	"datamod/internal/users"
	"datamod/pkg/platform/sentinel"
)

// CreateRandomUsers inserts three to five users with unique names.
type CreateRandomUsers struct {
	users  *users.Queries
	logger *slog.Logger
	cfg    Config
}

func NewCreateRandomUsers(deps modification.Deps, cfg Config) *CreateRandomUsers {
	return &CreateRandomUsers{
		users:  users.New(deps.Tx),
		logger: deps.Logger,
		cfg:    cfg,
	}
}

func (m *CreateRandomUsers) Run(ctx context.Context, mode modification.Mode) error {
	count := 3 + m.cfg.intN(3)
	stamp := m.cfg.now().UnixNano()

	m.logger.InfoContext(ctx, fmt.Sprintf("Creating %d random users...", count))
	m.logger.InfoContext(ctx, "Mode: "+modeLabel(mode))

	for i := range count {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.logger.InfoContext(ctx, fmt.Sprintf("Creating user %d of %d...", i+1, count))
		if err := pause(ctx, m.cfg.Pace); err != nil {
			return err
		}

		username, err := m.freeUsername(ctx, stamp, i)
		if err != nil {
			return err
		}
		u := users.User{
			ID:        uuid.New(),
			Username:  username,
			Email:     username + "@example.com",
			CreatedAt: m.cfg.now().UTC(),
		}
		if err := m.users.CreateUser(ctx, u); err != nil {
			return err
		}
		m.logger.InfoContext(ctx, fmt.Sprintf("Created user: %s (%s)", u.Username, u.Email))
	}
	m.logger.InfoContext(ctx, fmt.Sprintf("Successfully saved %d users to database.", count))

	total, err := m.users.CountUsers(ctx)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, fmt.Sprintf("Total users in database: %d", total))

	if !mode.IsDryRun() && m.cfg.Metrics != nil {
		m.cfg.Metrics.AddUsersCreated(count)
	}
	return nil
}

// usernameAttempts bounds the search for a username not already taken.
const usernameAttempts = 5

func (m *CreateRandomUsers) freeUsername(ctx context.Context, stamp int64, i int) (string, error) {
	for range usernameAttempts {
		candidate := fmt.Sprintf("user_%d_%d_%d", stamp, i, 1000+m.cfg.intN(9000))
		_, err := m.users.GetUserByUsername(ctx, candidate)
		if errors.Is(err, sentinel.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		m.logger.DebugContext(ctx, "Username "+candidate+" is taken, picking another")
	}
	return "", fmt.Errorf("no free username for user %d after %d attempts", i+1, usernameAttempts)
}
