//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/testsupport"
)

func TestRepositoryRecordsLogsAndRanksLeaderboard(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)
	repo := NewRepository(pool)

	alice := createUser(t, ctx, repo, "alice")
	bob := createUser(t, ctx, repo, "bob")
	carol := createUser(t, ctx, repo, "carol")

	activities, err := repo.ListActivities(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, activities)
	activity := activities[0]

	base := time.Now().UTC().Truncate(time.Millisecond)
	insertLog(t, ctx, repo, alice, activity, 10, base)
	insertLog(t, ctx, repo, bob, activity, 30, base.Add(time.Second))

	entries, err := repo.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, bob, entries[0].ID)
	require.Equal(t, alice, entries[1].ID)
	require.Equal(t, carol, entries[2].ID, "profiles without logs appear with zero points")
	require.Zero(t, entries[2].TotalPoints)

	total, err := repo.UserTotal(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, domain.UserTotal{Points: 30, Activities: 1}, total)

	totals, err := repo.UserTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 3)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Equal(t, 5, pending, "three profile.created and two activity_log.recorded events")
}

func TestRepositoryPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)
	repo := NewRepository(pool)

	user := createUser(t, ctx, repo, "pager")
	activities, err := repo.ListActivities(ctx)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 25; i++ {
		insertLog(t, ctx, repo, user, activities[0], 1, base.Add(time.Duration(i)*time.Second))
	}

	page2, err := repo.ListActivityLogs(ctx, user, domain.QueryForPage(domain.Page{Number: 2, Size: 10}))
	require.NoError(t, err)
	require.Len(t, page2, 10)
	require.True(t, page2[0].CreatedAt.Equal(base.Add(14*time.Second)))
	require.Equal(t, activities[0].Name, page2[0].Activity.Name)

	all, err := repo.ListActivityLogs(ctx, user, domain.LogQuery{})
	require.NoError(t, err)
	require.Len(t, all, 25)

	after, err := repo.ListActivityLogs(ctx, user, domain.LogQuery{
		Limit: 5,
		After: &domain.Cursor{CreatedAt: all[9].CreatedAt, ID: all[9].ID},
	})
	require.NoError(t, err)
	require.Len(t, after, 5)
	require.Equal(t, all[10].ID, after[0].ID)
}

func TestRepositoryEnforcesRowLevelSecurity(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)
	repo := NewRepository(pool)

	owner := createUser(t, ctx, repo, "owner")
	intruder := createUser(t, ctx, repo, "intruder")
	activities, err := repo.ListActivities(ctx)
	require.NoError(t, err)

	_, err = execAs(ctx, pool, intruder,
		`INSERT INTO activity_logs (id, user_id, activity_id, amount, points_earned) VALUES ($1,$2,$3,1,1)`,
		uuid.NewString(), owner, activities[0].ID,
	)
	require.Error(t, err, "RLS should reject logs written for another user")

	affected, err := execAs(ctx, pool, intruder, `UPDATE profiles SET bio = 'hijacked' WHERE id = $1`, owner)
	require.NoError(t, err)
	require.Zero(t, affected, "RLS should hide other users' profiles from updates")

	affected, err = execAs(ctx, pool, owner, `UPDATE profiles SET bio = 'mine' WHERE id = $1`, owner)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
}

func TestRepositoryConflictsAndMissingRows(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)
	repo := NewRepository(pool)

	createUser(t, ctx, repo, "taken")
	id := uuid.NewString()
	err := repo.CreateAccount(ctx,
		domain.Account{ID: id, Email: id + "@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()},
		domain.Profile{ID: id, Username: "taken", CreatedAt: time.Now().UTC()},
	)
	require.ErrorIs(t, err, domain.ErrConflict)

	activity, err := repo.GetActivity(ctx, "not-a-uuid")
	require.NoError(t, err)
	require.Nil(t, activity)

	profile, err := repo.GetProfile(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, profile)

	account, err := repo.AccountByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, account)
}

func TestRepositoryTotalsExceedInt32(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)
	repo := NewRepository(pool)

	whale := createUser(t, ctx, repo, "whale")
	minnow := createUser(t, ctx, repo, "minnow")

	activities, err := repo.ListActivities(ctx)
	require.NoError(t, err)
	activity := activities[0]

	base := time.Now().UTC().Truncate(time.Millisecond)
	insertLog(t, ctx, repo, whale, activity, domain.MaxPointsPerLog, base)
	insertLog(t, ctx, repo, whale, activity, domain.MaxPointsPerLog, base.Add(time.Second))
	insertLog(t, ctx, repo, minnow, activity, 1, base.Add(2*time.Second))

	want := 2 * domain.MaxPointsPerLog

	entries, err := repo.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, whale, entries[0].ID)
	require.Equal(t, want, entries[0].TotalPoints)

	total, err := repo.UserTotal(ctx, whale)
	require.NoError(t, err)
	require.Equal(t, domain.UserTotal{Points: want, Activities: 2}, total)

	totals, err := repo.UserTotals(ctx)
	require.NoError(t, err)
	require.Equal(t, want, totals[whale].Points)
}

func createUser(t *testing.T, ctx context.Context, repo *Repository, username string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	require.NoError(t, repo.CreateAccount(ctx,
		domain.Account{ID: id, Email: username + "@example.com", PasswordHash: "hash", CreatedAt: now},
		domain.Profile{ID: id, Username: username, CreatedAt: now},
	))
	return id
}

func insertLog(t *testing.T, ctx context.Context, repo *Repository, userID string, activity domain.Activity, points int, at time.Time) {
	t.Helper()
	require.NoError(t, repo.InsertActivityLog(ctx, domain.ActivityLog{
		ID:           uuid.NewString(),
		UserID:       userID,
		ActivityID:   activity.ID,
		Amount:       1,
		PointsEarned: points,
		CreatedAt:    at,
	}))
}

// execAs runs stmt as the unprivileged application role scoped to sessionUser.
func execAs(ctx context.Context, pool *pgxpool.Pool, sessionUser, stmt string, args ...interface{}) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET LOCAL ROLE tracker_app"); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", sessionUser); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), tx.Commit(ctx)
}
