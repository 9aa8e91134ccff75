package modifications

import (
	"context"
	"fmt"
	"log/slog"

	"datamod/internal/modification"
	"datamod/internal/users"
)

// DeleteAllUsers removes every user one at a time.
type DeleteAllUsers struct {
	users  *users.Queries
	logger *slog.Logger
	cfg    Config
}

func NewDeleteAllUsers(deps modification.Deps, cfg Config) *DeleteAllUsers {
	return &DeleteAllUsers{
		users:  users.New(deps.Tx),
		logger: deps.Logger,
		cfg:    cfg,
	}
}

func (m *DeleteAllUsers) Run(ctx context.Context, mode modification.Mode) error {
	total, err := m.users.CountUsers(ctx)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, fmt.Sprintf("Found %d users to delete", total))
	m.logger.InfoContext(ctx, "Mode: "+modeLabel(mode))

	if total == 0 {
		m.logger.InfoContext(ctx, "No users to delete")
		return nil
	}

	list, err := m.users.ListUsers(ctx)
	if err != nil {
		return err
	}
	deleted := 0
	for _, u := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.users.DeleteUser(ctx, u.ID); err != nil {
			return err
		}
		deleted++
		m.logger.InfoContext(ctx, fmt.Sprintf("Deleted user %d of %d: %s", deleted, total, u.Username))

		if deleted < len(list) {
			if err := pause(ctx, m.cfg.Pace*2/3); err != nil {
				return err
			}
		}
	}
	m.logger.InfoContext(ctx, fmt.Sprintf("Successfully deleted %d users", deleted))

	if !mode.IsDryRun() && m.cfg.Metrics != nil {
		m.cfg.Metrics.AddUsersDeleted(deleted)
	}
	return nil
}
