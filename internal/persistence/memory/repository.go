// Package memory provides an in-process repository used by tests and by the
// memory store driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/events"
)

// RecordedEvent is an event the repository would have written to the outbox.
type RecordedEvent struct {
	Type    string
	UserID  string
	Payload interface{}
}

// Repository implements domain.Repository on maps guarded by a RWMutex.
type Repository struct {
	mu         sync.RWMutex
	accounts   map[string]domain.Account
	profiles   map[string]domain.Profile
	order      []string
	activities map[string]domain.Activity
	logs       []domain.ActivityLog
	events     []RecordedEvent
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository constructs a repository seeded with the given catalog. A nil
// catalog uses DefaultCatalog.
func NewRepository(catalog []domain.Activity) *Repository {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	r := &Repository{
		accounts:   make(map[string]domain.Account),
		profiles:   make(map[string]domain.Profile),
		activities: make(map[string]domain.Activity),
	}
	for _, a := range catalog {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		r.activities[a.ID] = a
	}
	return r
}

// DefaultCatalog mirrors the seeded Postgres catalog.
func DefaultCatalog() []domain.Activity {
	return []domain.Activity{
		{Name: "Running", Unit: "km", PointsPerUnit: 10, IconEmoji: "🏃"},
		{Name: "Cycling", Unit: "km", PointsPerUnit: 4, IconEmoji: "🚴"},
		{Name: "Swimming", Unit: "laps", PointsPerUnit: 3, IconEmoji: "🏊"},
		{Name: "Walking", Unit: "km", PointsPerUnit: 5, IconEmoji: "🚶"},
		{Name: "Reading", Unit: "pages", PointsPerUnit: 0.5, IconEmoji: "📚"},
		{Name: "Meditation", Unit: "minutes", PointsPerUnit: 1, IconEmoji: "🧘"},
		{Name: "Gym workout", Unit: "minutes", PointsPerUnit: 1.5, IconEmoji: "🏋️"},
		{Name: "Recycling", Unit: "items", PointsPerUnit: 2, IconEmoji: "♻️"},
		{Name: "Volunteering", Unit: "hours", PointsPerUnit: 20, IconEmoji: "🤝"},
		{Name: "Drinking water", Unit: "glasses", PointsPerUnit: 1, IconEmoji: "💧"},
	}
}

// Events returns a copy of the recorded outbox events.
func (r *Repository) Events() []RecordedEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RecordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Repository) CreateAccount(_ context.Context, account domain.Account, profile domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return domain.ErrConflict
		}
	}
	if r.usernameTaken(profile.Username, "") {
		return domain.ErrConflict
	}

	r.accounts[account.ID] = account
	r.profiles[profile.ID] = profile
	r.order = append(r.order, profile.ID)
	r.events = append(r.events, RecordedEvent{
		Type:   events.TypeProfileCreated,
		UserID: profile.ID,
		Payload: events.ProfileChanged{
			UserID: profile.ID, Username: profile.Username, FullName: profile.FullName, OccurredAt: profile.CreatedAt,
		},
	})
	return nil
}

func (r *Repository) usernameTaken(username, exceptID string) bool {
	for id, p := range r.profiles {
		if id != exceptID && p.Username == username {
			return true
		}
	}
	return false
}

func (r *Repository) AccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if account.Email == email {
			a := account
			return &a, nil
		}
	}
	return nil, nil
}

func (r *Repository) AccountByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (r *Repository) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func (r *Repository) UpdateProfile(_ context.Context, profile domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[profile.ID]; !ok {
		return domain.ErrNotFound
	}
	if r.usernameTaken(profile.Username, profile.ID) {
		return domain.ErrConflict
	}
	r.profiles[profile.ID] = profile
	r.events = append(r.events, RecordedEvent{
		Type:   events.TypeProfileUpdated,
		UserID: profile.ID,
		Payload: events.ProfileChanged{
			UserID: profile.ID, Username: profile.Username, FullName: profile.FullName, OccurredAt: time.Now().UTC(),
		},
	})
	return nil
}

func (r *Repository) ListProfileIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out, nil
}

func (r *Repository) ListActivities(_ context.Context) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Activity, 0, len(r.activities))
	for _, a := range r.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Repository) GetActivity(_ context.Context, id string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activities[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *Repository) InsertActivityLog(_ context.Context, log domain.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[log.UserID]; !ok {
		return domain.ErrNotFound
	}
	activity, ok := r.activities[log.ActivityID]
	if !ok {
		return domain.ErrNotFound
	}
	log.Activity = domain.ActivityRef{Name: activity.Name, Unit: activity.Unit, IconEmoji: activity.IconEmoji}
	r.logs = append(r.logs, log)
	r.events = append(r.events, RecordedEvent{
		Type:   events.TypeActivityLogRecorded,
		UserID: log.UserID,
		Payload: events.ActivityLogRecorded{
			LogID: log.ID, UserID: log.UserID, ActivityID: log.ActivityID,
			Amount: log.Amount, PointsEarned: log.PointsEarned, RecordedAt: log.CreatedAt,
		},
	})
	return nil
}

func (r *Repository) ListActivityLogs(_ context.Context, userID string, q domain.LogQuery) ([]domain.ActivityLog, error) {
	r.mu.RLock()
	owned := make([]domain.ActivityLog, 0)
	for _, l := range r.logs {
		if l.UserID == userID {
			owned = append(owned, l)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	start := 0
	if q.After != nil {
		start = len(owned)
		for i, l := range owned {
			if before(l, *q.After) {
				start = i
				break
			}
		}
	} else if q.Offset > 0 {
		start = q.Offset
	}
	if start >= len(owned) {
		return []domain.ActivityLog{}, nil
	}
	owned = owned[start:]
	if q.Limit > 0 && q.Limit < len(owned) {
		owned = owned[:q.Limit]
	}
	return owned, nil
}

// before reports whether l sorts strictly after the cursor in a descending listing.
func before(l domain.ActivityLog, c domain.Cursor) bool {
	if l.CreatedAt.Equal(c.CreatedAt) {
		return l.ID < c.ID
	}
	return l.CreatedAt.Before(c.CreatedAt)
}

func (r *Repository) Leaderboard(_ context.Context) ([]domain.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := r.totalsLocked()
	entries := make([]domain.LeaderboardEntry, 0, len(r.order))
	for _, id := range r.order {
		p := r.profiles[id]
		t := totals[id]
		entries = append(entries, domain.LeaderboardEntry{
			ID:            p.ID,
			Username:      p.Username,
			FullName:      p.FullName,
			AvatarURL:     p.AvatarURL,
			TotalPoints:   t.Points,
			ActivityCount: t.Activities,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TotalPoints > entries[j].TotalPoints })
	return entries, nil
}

func (r *Repository) UserTotals(_ context.Context) (map[string]domain.UserTotal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	totals := r.totalsLocked()
	for _, id := range r.order {
		if _, ok := totals[id]; !ok {
			totals[id] = domain.UserTotal{}
		}
	}
	return totals, nil
}

func (r *Repository) UserTotal(_ context.Context, userID string) (domain.UserTotal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalsLocked()[userID], nil
}

func (r *Repository) totalsLocked() map[string]domain.UserTotal {
	totals := make(map[string]domain.UserTotal)
	for _, l := range r.logs {
		t := totals[l.UserID]
		t.Points += l.PointsEarned
		t.Activities++
		totals[l.UserID] = t
	}
	return totals
}
