package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datamod/pkg/platform/sentinel"
	"datamod/pkg/testutil"
)

func newUser(name string, created time.Time) User {
	return User{
		ID:        uuid.New(),
		Username:  name,
		Email:     name + "@example.com",
		CreatedAt: created,
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	testutil.Given(t, "an empty users table", func(t *testing.T) {
		q := New(testutil.NewSQLiteDB(t))

		n, err := q.CountUsers(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		testutil.When(t, "users are created", func(t *testing.T) {
			require.NoError(t, q.CreateUser(ctx, newUser("alice", base)))
			require.NoError(t, q.CreateUser(ctx, newUser("bob", base.Add(time.Hour))))

			testutil.Then(t, "they are listed newest first", func(t *testing.T) {
				list, err := q.ListUsers(ctx)
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, "bob", list[0].Username)
				assert.Equal(t, "bob@example.com", list[0].Email)
				assert.True(t, base.Add(time.Hour).Equal(list[0].CreatedAt))
				assert.Equal(t, "alice", list[1].Username)
			})

			testutil.Then(t, "a duplicate username is rejected", func(t *testing.T) {
				assert.Error(t, q.CreateUser(ctx, newUser("alice", base)))
			})

			testutil.Then(t, "they can be looked up and deleted", func(t *testing.T) {
				u, err := q.GetUserByUsername(ctx, "alice")
				require.NoError(t, err)
				require.NoError(t, q.DeleteUser(ctx, u.ID))

				_, err = q.GetUserByUsername(ctx, "alice")
				assert.ErrorIs(t, err, sentinel.ErrNotFound)
				assert.ErrorIs(t, q.DeleteUser(ctx, u.ID), sentinel.ErrNotFound)

				n, err := q.CountUsers(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			})
		})
	})
}

func TestQueriesInsideTransaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	q := New(db)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, New(tx).CreateUser(ctx, newUser("carol", time.Now())))

	n, err := New(tx).CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "writes are visible inside the transaction")

	require.NoError(t, tx.Rollback())

	n, err = q.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
