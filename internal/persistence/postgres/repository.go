// Package postgres implements the tracker repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/events"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/observability"
)

const (
	pgUniqueViolation    = "23505"
	pgInvalidTextFormat  = "22P02"
	pgForeignKeyViolated = "23503"
)

// Repository provides Postgres-backed persistence for profiles, the activity
// catalog, activity logs and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ domain.Repository = (*Repository)(nil)

// withUser runs fn inside a transaction scoped to userID for row-level security.
func (r *Repository) withUser(ctx context.Context, userID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateAccount stores the credentials and the profile and records a
// profile.created event in one transaction.
func (r *Repository) CreateAccount(ctx context.Context, account domain.Account, profile domain.Profile) error {
	err := r.withUser(ctx, account.ID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO accounts (id, email, password_hash, created_at) VALUES ($1,$2,$3,$4)`,
			account.ID, account.Email, account.PasswordHash, account.CreatedAt,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO profiles (id, username, full_name, avatar_url, bio, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			profile.ID, profile.Username, profile.FullName, profile.AvatarURL, profile.Bio, profile.CreatedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxRecord{
			userID:        profile.ID,
			aggregateType: "profile",
			aggregateID:   profile.ID,
			eventType:     events.TypeProfileCreated,
			dedupeKey:     profile.ID + ":" + events.TypeProfileCreated,
			payload: events.ProfileChanged{
				UserID:     profile.ID,
				Username:   profile.Username,
				FullName:   profile.FullName,
				OccurredAt: profile.CreatedAt,
			},
		})
	})
	return translate(err)
}

// AccountByEmail returns nil when no account uses email.
func (r *Repository) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.account(ctx, `SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`, email)
}

// AccountByID returns nil when the account does not exist.
func (r *Repository) AccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.account(ctx, `SELECT id, email, password_hash, created_at FROM accounts WHERE id = $1`, id)
}

func (r *Repository) account(ctx context.Context, query string, arg string) (*domain.Account, error) {
	var account domain.Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetProfile returns nil when the profile does not exist.
func (r *Repository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, full_name, avatar_url, bio, created_at FROM profiles WHERE id = $1`, id,
	).Scan(&profile.ID, &profile.Username, &profile.FullName, &profile.AvatarURL, &profile.Bio, &profile.CreatedAt)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile writes the mutable profile columns and records profile.updated.
func (r *Repository) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	err := r.withUser(ctx, profile.ID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE profiles SET username = $2, full_name = $3, avatar_url = $4, bio = $5 WHERE id = $1`,
			profile.ID, profile.Username, profile.FullName, profile.AvatarURL, profile.Bio,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		now := time.Now().UTC()
		return insertOutbox(ctx, tx, outboxRecord{
			userID:        profile.ID,
			aggregateType: "profile",
			aggregateID:   profile.ID,
			eventType:     events.TypeProfileUpdated,
			dedupeKey:     fmt.Sprintf("%s:%s:%d", profile.ID, events.TypeProfileUpdated, now.UnixNano()),
			payload: events.ProfileChanged{
				UserID:     profile.ID,
				Username:   profile.Username,
				FullName:   profile.FullName,
				OccurredAt: now,
			},
		})
	})
	return translate(err)
}

// ListProfileIDs returns every profile id in sign-up order.
func (r *Repository) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListActivities returns the catalog ordered by name.
func (r *Repository) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, unit, points_per_unit, icon_emoji FROM activities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.Name, &a.Unit, &a.PointsPerUnit, &a.IconEmoji); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// GetActivity returns nil for unknown or malformed ids.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	var a domain.Activity
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, unit, points_per_unit, icon_emoji FROM activities WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Unit, &a.PointsPerUnit, &a.IconEmoji)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// InsertActivityLog persists the log and its activity_log.recorded outbox
// event inside a single transaction.
func (r *Repository) InsertActivityLog(ctx context.Context, log domain.ActivityLog) error {
	err := r.withUser(ctx, log.UserID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO activity_logs (id, user_id, activity_id, amount, points_earned, notes, created_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			log.ID, log.UserID, log.ActivityID, log.Amount, log.PointsEarned, log.Notes, log.CreatedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxRecord{
			userID:        log.UserID,
			aggregateType: "activity_log",
			aggregateID:   log.ID,
			eventType:     events.TypeActivityLogRecorded,
			dedupeKey:     log.ID + ":" + events.TypeActivityLogRecorded,
			payload: events.ActivityLogRecorded{
				LogID:        log.ID,
				UserID:       log.UserID,
				ActivityID:   log.ActivityID,
				Amount:       log.Amount,
				PointsEarned: log.PointsEarned,
				RecordedAt:   log.CreatedAt,
			},
		})
	})
	if err != nil {
		return translate(err)
	}
	observability.RecordActivityLogPersisted(log.CreatedAt)
	return nil
}

// ListActivityLogs returns the user's logs joined with their catalog entry,
// newest first.
func (r *Repository) ListActivityLogs(ctx context.Context, userID string, q domain.LogQuery) ([]domain.ActivityLog, error) {
	args := []interface{}{userID}
	query := `SELECT l.id, l.user_id, l.activity_id, l.amount, l.points_earned, l.notes, l.created_at,
                     a.name, a.unit, a.icon_emoji
                FROM activity_logs l
                JOIN activities a ON a.id = l.activity_id
               WHERE l.user_id = $1`

	if q.After != nil {
		args = append(args, q.After.CreatedAt, q.After.ID)
		query += fmt.Sprintf(` AND (l.created_at, l.id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY l.created_at DESC, l.id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if q.After == nil && q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return []domain.ActivityLog{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.ActivityLog, 0)
	for rows.Next() {
		var l domain.ActivityLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ActivityID, &l.Amount, &l.PointsEarned, &l.Notes, &l.CreatedAt,
			&l.Activity.Name, &l.Activity.Unit, &l.Activity.IconEmoji); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Leaderboard reads every profile's aggregate ordered by total points, then
// sign-up time.
func (r *Repository) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, full_name, avatar_url, total_points, activity_count
           FROM leaderboard
          ORDER BY total_points DESC, created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.FullName, &e.AvatarURL, &e.TotalPoints, &e.ActivityCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UserTotals returns the aggregate of every profile keyed by id.
func (r *Repository) UserTotals(ctx context.Context) (map[string]domain.UserTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, total_points, activity_count FROM leaderboard`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]domain.UserTotal)
	for rows.Next() {
		var (
			id    string
			total domain.UserTotal
		)
		if err := rows.Scan(&id, &total.Points, &total.Activities); err != nil {
			return nil, err
		}
		totals[id] = total
	}
	return totals, rows.Err()
}

// UserTotal returns the user's aggregate; unknown users total zero.
func (r *Repository) UserTotal(ctx context.Context, userID string) (domain.UserTotal, error) {
	var total domain.UserTotal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points_earned), 0)::BIGINT, COUNT(*) FROM activity_logs WHERE user_id = $1`, userID,
	).Scan(&total.Points, &total.Activities)
	if err != nil && !isMissing(err) {
		return domain.UserTotal{}, err
	}
	return total, nil
}

type outboxRecord struct {
	userID        string
	aggregateType string
	aggregateID   string
	eventType     string
	dedupeKey     string
	payload       interface{}
}

func insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	body, err := json.Marshal(rec.payload)
	if err != nil {
		return err
	}

	route, ok := events.Routes[rec.eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", rec.eventType)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		rec.userID,
		rec.aggregateType,
		rec.aggregateID,
		rec.eventType,
		route.Topic,
		route.SchemaSubject,
		rec.userID,
		body,
		rec.dedupeKey,
	)
	return err
}

func isMissing(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || isInvalidText(err)
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextFormat
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrConflict)
		case pgForeignKeyViolated:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrNotFound)
		}
	}
	return err
}
