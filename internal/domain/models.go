package domain

import "time"

// Profile is the public identity of an authenticated user.
type Profile struct {
	ID        string
	Username  string
	FullName  *string
	AvatarURL *string
	Bio       *string
	CreatedAt time.Time
}

// DisplayName prefers the full name and falls back to the username.
func (p Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Username
}

// Account holds the credentials behind a session. Its ID equals the profile ID.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Activity is a catalog entry defining a trackable action and its point rate.
type Activity struct {
	ID            string
	Name          string
	Unit          string
	PointsPerUnit float64
	IconEmoji     string
}

// ActivityRef carries the catalog columns joined onto a log row.
type ActivityRef struct {
	Name      string
	Unit      string
	IconEmoji string
}

// ActivityLog is a single user-submitted record of performing an activity.
// PointsEarned is fixed at write time.
type ActivityLog struct {
	ID           string
	UserID       string
	ActivityID   string
	Amount       float64
	PointsEarned int
	Notes        *string
	CreatedAt    time.Time
	Activity     ActivityRef
}

// LeaderboardEntry is one row of the leaderboard view. Rank is zero until
// AssignRanks runs.
type LeaderboardEntry struct {
	ID            string
	Username      string
	FullName      *string
	AvatarURL     *string
	TotalPoints   int
	ActivityCount int
	Rank          int
}

// UserTotal is the per-user aggregate over activity logs.
type UserTotal struct {
	Points     int
	Activities int
}

// ProfileSummary backs the profile card.
type ProfileSummary struct {
	Profile       Profile
	TotalPoints   int
	ActivityCount int
	Rank          int
}

// Dashboard backs the dashboard header.
type Dashboard struct {
	Profile       *Profile
	TotalPoints   int
	ActivityCount int
	Rank          int
	Refresh       uint64
}

// LeaderboardView is the ranked leaderboard as seen by one session.
type LeaderboardView struct {
	Entries         []LeaderboardEntry
	CurrentUserID   string
	CurrentUserRank int
	Refresh         uint64
}

// Session is the authenticated caller, passed explicitly to every operation
// that acts on behalf of a user.
type Session struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Token is an issued session credential.
type Token struct {
	AccessToken string
	SessionID   string
	ExpiresAt   time.Time
}
