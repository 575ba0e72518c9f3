package api

import (
	"time"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
)

// SignUpRequest is the payload for POST /v1/auth/signup.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// SignInRequest is the payload for POST /v1/auth/login.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries an issued token.
type SessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserView     `json:"user"`
	Profile     *ProfileView `json:"profile,omitempty"`
}

// UserView exposes the account behind a session.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ProfileView is the public profile representation.
type ProfileView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	FullName    *string   `json:"full_name"`
	AvatarURL   *string   `json:"avatar_url"`
	Bio         *string   `json:"bio"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpdateProfileRequest is the payload for PUT /v1/profiles/me. Omitted fields
// are left unchanged; empty strings clear optional fields.
type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
	Bio       *string `json:"bio"`
}

// ProfileSummaryView backs the profile card.
type ProfileSummaryView struct {
	Profile       ProfileView `json:"profile"`
	TotalPoints   int         `json:"total_points"`
	ActivityCount int         `json:"activity_count"`
	Rank          int         `json:"rank"`
}

// ActivityView is a catalog entry.
type ActivityView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	PointsPerUnit float64 `json:"points_per_unit"`
	IconEmoji     string  `json:"icon_emoji"`
}

// ListActivitiesResponse packages the catalog.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// RecordActivityRequest is the payload for POST /v1/activity-logs.
type RecordActivityRequest struct {
	ActivityID string  `json:"activity_id"`
	Amount     float64 `json:"amount"`
	Notes      string  `json:"notes"`
}

// ActivityRefView carries the joined catalog columns of a log.
type ActivityRefView struct {
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	IconEmoji string `json:"icon_emoji"`
}

// ActivityLogView is a single log entry.
type ActivityLogView struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	ActivityID   string          `json:"activity_id"`
	Amount       float64         `json:"amount"`
	PointsEarned int             `json:"points_earned"`
	Notes        *string         `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	Activity     ActivityRefView `json:"activities"`
}

// RecordActivityResponse is returned after a successful write.
type RecordActivityResponse struct {
	Log     ActivityLogView `json:"log"`
	Refresh uint64          `json:"refresh"`
}

// ListActivityLogsResponse packages a page of logs.
type ListActivityLogsResponse struct {
	Items      []ActivityLogView `json:"items"`
	Page       int               `json:"page,omitempty"`
	PageSize   int               `json:"page_size"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// ActivityStatView is one aggregation group.
type ActivityStatView struct {
	Name        string  `json:"name"`
	IconEmoji   string  `json:"icon_emoji"`
	Unit        string  `json:"unit"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// StatsResponse packages the aggregation.
type StatsResponse struct {
	Items []ActivityStatView `json:"items"`
}

// DashboardResponse backs the dashboard header.
type DashboardResponse struct {
	Profile       *ProfileView `json:"profile"`
	TotalPoints   int          `json:"total_points"`
	ActivityCount int          `json:"activity_count"`
	Rank          int          `json:"rank"`
	Refresh       uint64       `json:"refresh"`
}

// LeaderboardEntryView is one ranked row.
type LeaderboardEntryView struct {
	Rank          int     `json:"rank"`
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	FullName      *string `json:"full_name"`
	AvatarURL     *string `json:"avatar_url"`
	TotalPoints   int     `json:"total_points"`
	ActivityCount int     `json:"activity_count"`
	CurrentUser   bool    `json:"is_current_user"`
}

// LeaderboardResponse is the ranked leaderboard as seen by the caller.
type LeaderboardResponse struct {
	Items   []LeaderboardEntryView `json:"items"`
	MyRank  int                    `json:"my_rank"`
	Refresh uint64                 `json:"refresh"`
}

func toProfileView(p domain.Profile) ProfileView {
	return ProfileView{
		ID:          p.ID,
		Username:    p.Username,
		FullName:    p.FullName,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		DisplayName: p.DisplayName(),
		CreatedAt:   p.CreatedAt,
	}
}

func toActivityLogView(l domain.ActivityLog) ActivityLogView {
	return ActivityLogView{
		ID:           l.ID,
		UserID:       l.UserID,
		ActivityID:   l.ActivityID,
		Amount:       l.Amount,
		PointsEarned: l.PointsEarned,
		Notes:        l.Notes,
		CreatedAt:    l.CreatedAt,
		Activity: ActivityRefView{
			Name:      l.Activity.Name,
			Unit:      l.Activity.Unit,
			IconEmoji: l.Activity.IconEmoji,
		},
	}
}

func toActivityLogViews(logs []domain.ActivityLog) []ActivityLogView {
	out := make([]ActivityLogView, 0, len(logs))
	for _, l := range logs {
		out = append(out, toActivityLogView(l))
	}
	return out
}
