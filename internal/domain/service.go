// Package domain defines the business logic for the activity points tracker.
package domain

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/observability"
)

// ProfileStore persists accounts and profiles.
type ProfileStore interface {
	CreateAccount(ctx context.Context, account Account, profile Profile) error
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByID(ctx context.Context, id string) (*Account, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) error
	ListProfileIDs(ctx context.Context) ([]string, error)
}

// CatalogStore reads the activity catalog.
type CatalogStore interface {
	ListActivities(ctx context.Context) ([]Activity, error)
	GetActivity(ctx context.Context, id string) (*Activity, error)
}

// LogStore persists activity logs.
type LogStore interface {
	InsertActivityLog(ctx context.Context, log ActivityLog) error
	ListActivityLogs(ctx context.Context, userID string, query LogQuery) ([]ActivityLog, error)
}

// LeaderboardStore reads the per-user aggregates.
type LeaderboardStore interface {
	Leaderboard(ctx context.Context) ([]LeaderboardEntry, error)
	UserTotals(ctx context.Context) (map[string]UserTotal, error)
	UserTotal(ctx context.Context, userID string) (UserTotal, error)
}

// Repository captures every persistence operation the service needs.
type Repository interface {
	ProfileStore
	CatalogStore
	LogStore
	LeaderboardStore
}

// LeaderboardCache holds the most recent unranked leaderboard snapshot.
type LeaderboardCache interface {
	Load(ctx context.Context) ([]LeaderboardEntry, bool, error)
	Store(ctx context.Context, entries []LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(userID string) (Token, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// SessionRevoker ends sessions before their natural expiry.
type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithLogger sets the logger used for degraded reads and write failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLeaderboardCache enables leaderboard snapshot caching.
func WithLeaderboardCache(cache LeaderboardCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithAuthenticator wires token issuing, password hashing and revocation.
func WithAuthenticator(tokens TokenIssuer, passwords PasswordHasher, revoker SessionRevoker) Option {
	return func(s *Service) {
		s.tokens = tokens
		s.passwords = passwords
		s.revoker = revoker
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates the tracker workflows.
type Service struct {
	repo      Repository
	cache     LeaderboardCache
	tokens    TokenIssuer
	passwords PasswordHasher
	revoker   SessionRevoker
	logger    *zap.Logger
	now       func() time.Time

	refresh atomic.Uint64
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		cache:  noopCache{},
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshGeneration reports how many successful writes this instance has seen.
func (s *Service) RefreshGeneration() uint64 {
	return s.refresh.Load()
}

// SignUpInput is the payload for SignUp.
type SignUpInput struct {
	Email    string
	Password string
	Username string
	FullName string
}

// Validate checks the sign-up payload.
func (in SignUpInput) Validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(in.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	return validateUsername(in.Username)
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 {
		return fmt.Errorf("%w: username must be between 3 and 50 characters", ErrValidation)
	}
	return nil
}

// SignUp creates an account and its profile, returning a fresh session token.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*Profile, Token, error) {
	if err := input.Validate(); err != nil {
		return nil, Token{}, err
	}
	if s.tokens == nil || s.passwords == nil {
		return nil, Token{}, errors.New("authentication is not configured")
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, Token{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	id := uuid.NewString()
	account := Account{
		ID:           id,
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		CreatedAt:    now,
	}
	profile := Profile{
		ID:        id,
		Username:  strings.TrimSpace(input.Username),
		FullName:  optional(input.FullName),
		CreatedAt: now,
	}
	if err := s.repo.CreateAccount(ctx, account, profile); err != nil {
		return nil, Token{}, err
	}

	token, err := s.tokens.Issue(id)
	if err != nil {
		return nil, Token{}, err
	}
	s.logger.Info("account_created", zap.String("user_id", id), zap.String("username", profile.Username))
	return &profile, token, nil
}

// SignIn verifies credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Account, Token, error) {
	if s.tokens == nil || s.passwords == nil {
		return nil, Token{}, errors.New("authentication is not configured")
	}
	account, err := s.repo.AccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, Token{}, err
	}
	if account == nil {
		return nil, Token{}, ErrInvalidCredentials
	}
	if err := s.passwords.Compare(account.PasswordHash, password); err != nil {
		return nil, Token{}, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, Token{}, err
	}
	return account, token, nil
}

// SignOut ends the session.
func (s *Service) SignOut(ctx context.Context, session Session) error {
	if s.revoker == nil || session.SessionID == "" {
		return nil
	}
	return s.revoker.Revoke(ctx, session.SessionID, session.ExpiresAt)
}

// CurrentUser returns the account behind the session.
func (s *Service) CurrentUser(ctx context.Context, session Session) (*Account, error) {
	account, err := s.repo.AccountByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotFound
	}
	return account, nil
}

// GetProfile fetches a profile by ID.
func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	profile, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	return profile, nil
}

// ProfilePatch lists the user-mutable profile fields. Nil fields are left alone.
type ProfilePatch struct {
	Username  *string
	FullName  *string
	AvatarURL *string
	Bio       *string
}

// UpdateProfile applies a patch to the session user's profile.
func (s *Service) UpdateProfile(ctx context.Context, session Session, patch ProfilePatch) (*Profile, error) {
	profile, err := s.GetProfile(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if patch.Username != nil {
		if err := validateUsername(*patch.Username); err != nil {
			return nil, err
		}
		profile.Username = strings.TrimSpace(*patch.Username)
	}
	if patch.FullName != nil {
		profile.FullName = optional(*patch.FullName)
	}
	if patch.AvatarURL != nil {
		profile.AvatarURL = optional(*patch.AvatarURL)
	}
	if patch.Bio != nil {
		profile.Bio = optional(*patch.Bio)
	}
	if err := s.repo.UpdateProfile(ctx, *profile); err != nil {
		return nil, err
	}
	s.bumpRefresh(ctx)
	return profile, nil
}

// ProfileSummary combines a profile with its totals and its rank across all
// profiles.
func (s *Service) ProfileSummary(ctx context.Context, id string) (*ProfileSummary, error) {
	profile, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.UserTotals(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.ListProfileIDs(ctx)
	if err != nil {
		return nil, err
	}

	own := totals[id]
	return &ProfileSummary{
		Profile:       *profile,
		TotalPoints:   own.Points,
		ActivityCount: own.Activities,
		Rank:          RankByTotals(ids, totals, id),
	}, nil
}

// ListActivities returns the catalog. Fetch failures degrade to an empty list.
func (s *Service) ListActivities(ctx context.Context) []Activity {
	activities, err := s.repo.ListActivities(ctx)
	if err != nil {
		s.degraded("activities", err)
		return []Activity{}
	}
	return activities
}

// RecordActivityInput is the payload for RecordActivity.
type RecordActivityInput struct {
	ActivityID string
	Amount     float64
	Notes      string
}

// Validate checks the payload before any store call.
func (in RecordActivityInput) Validate() error {
	if strings.TrimSpace(in.ActivityID) == "" {
		return fmt.Errorf("%w: activity_id is required", ErrValidation)
	}
	return ValidateAmount(in.Amount)
}

// RecordActivity validates and stores a log entry for the session user. The
// points are computed once here and never recomputed.
func (s *Service) RecordActivity(ctx context.Context, session Session, input RecordActivityInput) (*ActivityLog, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	activity, err := s.repo.GetActivity(ctx, strings.TrimSpace(input.ActivityID))
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("activity %s: %w", input.ActivityID, ErrNotFound)
	}
	points, err := ComputePoints(input.Amount, activity.PointsPerUnit)
	if err != nil {
		return nil, err
	}

	log := ActivityLog{
		ID:           uuid.NewString(),
		UserID:       session.UserID,
		ActivityID:   activity.ID,
		Amount:       input.Amount,
		PointsEarned: points,
		Notes:        optional(input.Notes),
		CreatedAt:    s.now(),
		Activity: ActivityRef{
			Name:      activity.Name,
			Unit:      activity.Unit,
			IconEmoji: activity.IconEmoji,
		},
	}

	if err := s.repo.InsertActivityLog(ctx, log); err != nil {
		s.logger.Error("activity_record_failed",
			zap.String("user_id", session.UserID),
			zap.String("activity_id", activity.ID),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordActivityLogged(activity.Name, log.PointsEarned)
	s.bumpRefresh(ctx)
	s.logger.Info("activity_recorded",
		zap.String("user_id", session.UserID),
		zap.String("activity", activity.Name),
		zap.Float64("amount", log.Amount),
		zap.Int("points_earned", log.PointsEarned),
	)
	return &log, nil
}

// ActivityHistory returns one page of the user's logs, newest first.
func (s *Service) ActivityHistory(ctx context.Context, userID string, page Page) []ActivityLog {
	logs, err := s.repo.ListActivityLogs(ctx, userID, QueryForPage(page))
	if err != nil {
		s.degraded("activity_history", err)
		return []ActivityLog{}
	}
	return logs
}

// RecentActivityLogs returns the user's newest logs.
func (s *Service) RecentActivityLogs(ctx context.Context, userID string, limit int) []ActivityLog {
	limit = ClampLimit(limit)
	logs, err := s.repo.ListActivityLogs(ctx, userID, LogQuery{Limit: limit})
	if err != nil {
		s.degraded("recent_activities", err)
		return []ActivityLog{}
	}
	return logs
}

// ActivityLogsAfter continues a keyset listing from cursor. The returned
// cursor is nil once the listing is exhausted.
func (s *Service) ActivityLogsAfter(ctx context.Context, userID string, cursor *Cursor, limit int) ([]ActivityLog, *Cursor) {
	limit = ClampLimit(limit)
	logs, err := s.repo.ListActivityLogs(ctx, userID, LogQuery{Limit: limit, After: cursor})
	if err != nil {
		s.degraded("activity_history", err)
		return []ActivityLog{}, nil
	}
	var next *Cursor
	if len(logs) == limit {
		last := logs[len(logs)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return logs, next
}

// ActivityStats aggregates every log of the user by activity.
func (s *Service) ActivityStats(ctx context.Context, userID string) []ActivityStat {
	logs, err := s.repo.ListActivityLogs(ctx, userID, LogQuery{})
	if err != nil {
		s.degraded("activity_stats", err)
		return []ActivityStat{}
	}
	return AggregateByActivity(logs)
}

// Dashboard fetches the profile, then the user's totals, then the rank.
func (s *Service) Dashboard(ctx context.Context, session Session) (*Dashboard, error) {
	profile, err := s.repo.GetProfile(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.UserTotal(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	ranked := s.rankedLeaderboard(ctx)
	return &Dashboard{
		Profile:       profile,
		TotalPoints:   total.Points,
		ActivityCount: total.Activities,
		Rank:          RankOf(ranked, session.UserID),
		Refresh:       s.RefreshGeneration(),
	}, nil
}

// Leaderboard ranks every user by total points and locates the session user.
func (s *Service) Leaderboard(ctx context.Context, session Session) LeaderboardView {
	ranked := s.rankedLeaderboard(ctx)
	return LeaderboardView{
		Entries:         ranked,
		CurrentUserID:   session.UserID,
		CurrentUserRank: RankOf(ranked, session.UserID),
		Refresh:         s.RefreshGeneration(),
	}
}

func (s *Service) rankedLeaderboard(ctx context.Context) []LeaderboardEntry {
	entries, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("leaderboard_cache_load_failed", zap.Error(err))
	}
	if !ok {
		generation := s.refresh.Load()
		entries, err = s.repo.Leaderboard(ctx)
		if err != nil {
			s.degraded("leaderboard", err)
			return []LeaderboardEntry{}
		}
		// A write that landed during the read already invalidated the cache.
		if s.refresh.Load() == generation {
			if err := s.cache.Store(ctx, entries); err != nil {
				s.logger.Warn("leaderboard_cache_store_failed", zap.Error(err))
			}
		}
	}
	return AssignRanks(entries)
}

func (s *Service) bumpRefresh(ctx context.Context) {
	s.refresh.Add(1)
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("leaderboard_cache_invalidate_failed", zap.Error(err))
	}
}

func (s *Service) degraded(view string, err error) {
	observability.RecordDegradedRead(view)
	s.logger.Error("fetch_failed", zap.String("view", view), zap.Error(err))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

type noopCache struct{}

func (noopCache) Load(context.Context) ([]LeaderboardEntry, bool, error) { return nil, false, nil }
func (noopCache) Store(context.Context, []LeaderboardEntry) error { return nil }
func (noopCache) Invalidate(context.Context) error { return nil }
