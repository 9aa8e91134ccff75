package modifications

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"datamod/internal/modification"
	"datamod/internal/platform/metrics"
	"datamod/internal/users"
	"datamod/pkg/testutil"
)

// captureHandler keeps the message of every record it sees.
type captureHandler struct {
	mu   *sync.Mutex
	msgs *[]string
}

func newCapture() (*slog.Logger, func() []string) {
	h := captureHandler{mu: &sync.Mutex{}, msgs: &[]string{}}
	return slog.New(h), func() []string {
		h.mu.Lock()
		defer h.mu.Unlock()
		return append([]string(nil), *h.msgs...)
	}
}

func (h captureHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h captureHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h captureHandler) WithGroup(string) slog.Handler             { return h }
func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.msgs = append(*h.msgs, r.Message)
	return nil
}

type ModificationsSuite struct {
	suite.Suite
	db      *sql.DB
	metrics *metrics.Metrics
	cfg     Config
}

func TestModificationsSuite(t *testing.T) {
	suite.Run(t, new(ModificationsSuite))
}

func (s *ModificationsSuite) SetupTest() {
	s.db = testutil.NewSQLiteDB(s.T())
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.cfg = Config{
		Metrics: s.metrics,
		Now: func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		},
		Rand:    rand.New(rand.NewPCG(7, 11)),
	}
}

func (s *ModificationsSuite) count() int {
	n, err := users.New(s.db).CountUsers(context.Background())
	s.Require().NoError(err)
	return n
}

func (s *ModificationsSuite) seed(names ...string) {
	q := users.New(s.db)
	for i, name := range names {
		s.Require().NoError(q.CreateUser(context.Background(), users.User{
			ID:        uuid.New(),
			Username:  name,
			Email:     name + "@example.com",
			CreatedAt: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		}))
	}
}

// runInTx runs m inside a transaction and commits or rolls back the way a
// session would.
func (s *ModificationsSuite) runInTx(ctx context.Context, mode modification.Mode, build func(modification.Deps) modification.Modification) ([]string, error) {
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.Require().NoError(err)
	logger, msgs := newCapture()

	runErr := build(modification.Deps{Tx: tx, Logger: logger}).Run(ctx, mode)
	if runErr != nil || mode.IsDryRun() {
		s.Require().NoError(tx.Rollback())
	} else {
		s.Require().NoError(tx.Commit())
	}
	return msgs(), runErr
}

func (s *ModificationsSuite) createRandomUsers(deps modification.Deps) modification.Modification {
	return NewCreateRandomUsers(deps, s.cfg)
}

func (s *ModificationsSuite) deleteAllUsers(deps modification.Deps) modification.Modification {
	return NewDeleteAllUsers(deps, s.cfg)
}

func (s *ModificationsSuite) TestRegister() {
	reg := modification.NewRegistry()
	s.Require().NoError(Register(reg, s.cfg))

	list := reg.List()
	s.Require().Len(list, 2)
	s.Equal(CreateRandomUsersName, list[0].Name)
	s.Equal(DeleteAllUsersName, list[1].Name)
	s.Equal("Deletes all users from the database. Use with caution!", list[1].Description)

	s.Error(Register(reg, s.cfg), "registering twice must collide")
}

func (s *ModificationsSuite) TestCreateRandomUsers() {
	s.Run("commit inserts three to five users", func() {
		msgs, err := s.runInTx(context.Background(), modification.ModeCommit, s.createRandomUsers)
		s.Require().NoError(err)

		n := s.count()
		s.GreaterOrEqual(n, 3)
		s.LessOrEqual(n, 5)
		s.Equal(fmt.Sprintf("Creating %d random users...", n), msgs[0])
		s.Equal("Mode: Real Run", msgs[1])
		s.Contains(msgs, fmt.Sprintf("Creating user %d of %d...", n, n))
		s.Contains(msgs, fmt.Sprintf("Successfully saved %d users to database.", n))
		s.Equal(fmt.Sprintf("Total users in database: %d", n), msgs[len(msgs)-1])
		s.Equal(float64(n), promtestutil.ToFloat64(s.metrics.UsersCreated))
	})

	s.Run("usernames are unique across runs", func() {
		_, err := s.runInTx(context.Background(), modification.ModeCommit, s.createRandomUsers)
		s.Require().NoError(err)

		list, err := users.New(s.db).ListUsers(context.Background())
		s.Require().NoError(err)
		seen := map[string]bool{}
		for _, u := range list {
			s.False(seen[u.Username], "duplicate username %s", u.Username)
			seen[u.Username] = true
			s.Equal(u.Username+"@example.com", u.Email)
		}
	})
}

func (s *ModificationsSuite) TestCreateRandomUsersSkipsTakenUsernames() {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.cfg.Now = func() time.Time { return fixed }
	s.cfg.Rand = rand.New(rand.NewPCG(3, 5))

	// Replay the same source to learn the first username the run will try.
	replay := rand.New(rand.NewPCG(3, 5))
	count := 3 + replay.IntN(3)
	taken := fmt.Sprintf("user_%d_0_%d", fixed.UnixNano(), 1000+replay.IntN(9000))
	s.seed(taken)

	msgs, err := s.runInTx(context.Background(), modification.ModeCommit, s.createRandomUsers)
	s.Require().NoError(err)

	s.Equal(fmt.Sprintf("Creating %d random users...", count), msgs[0])
	s.Contains(msgs, "Username "+taken+" is taken, picking another")
	s.Equal(count+1, s.count())
}

func (s *ModificationsSuite) TestCreateRandomUsersDryRun() {
	msgs, err := s.runInTx(context.Background(), modification.ModeDryRun, s.createRandomUsers)
	s.Require().NoError(err)

	s.Equal("Mode: Dry Run", msgs[1])
	s.Equal(0, s.count())
	s.Zero(promtestutil.ToFloat64(s.metrics.UsersCreated))
}

func (s *ModificationsSuite) TestDeleteAllUsers() {
	s.Run("nothing to delete", func() {
		msgs, err := s.runInTx(context.Background(), modification.ModeCommit, s.deleteAllUsers)
		s.Require().NoError(err)
		s.Equal([]string{"Found 0 users to delete", "Mode: Real Run", "No users to delete"}, msgs)
	})

	s.Run("deletes newest first", func() {
		s.seed("alice", "bob")

		msgs, err := s.runInTx(context.Background(), modification.ModeCommit, s.deleteAllUsers)
		s.Require().NoError(err)
		s.Equal([]string{
			"Found 2 users to delete",
			"Mode: Real Run",
			"Deleted user 1 of 2: bob",
			"Deleted user 2 of 2: alice",
			"Successfully deleted 2 users",
		}, msgs)
		s.Equal(0, s.count())
		s.Equal(float64(2), promtestutil.ToFloat64(s.metrics.UsersDeleted))
	})
}

func (s *ModificationsSuite) TestDeleteAllUsersDryRun() {
	s.seed("carol")

	msgs, err := s.runInTx(context.Background(), modification.ModeDryRun, s.deleteAllUsers)
	s.Require().NoError(err)
	s.Contains(msgs, "Deleted user 1 of 1: carol")
	s.Equal(1, s.count())
	s.Zero(promtestutil.ToFloat64(s.metrics.UsersDeleted))
}

func (s *ModificationsSuite) TestCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Run("create stops before inserting", func() {
		_, err := s.runInTx(ctx, modification.ModeCommit, s.createRandomUsers)
		s.ErrorIs(err, context.Canceled)
		s.Equal(0, s.count())
	})

	s.Run("pause honours cancellation", func() {
		s.ErrorIs(pause(ctx, time.Hour), context.Canceled)
		s.NoError(pause(context.Background(), 0))
	})
}
