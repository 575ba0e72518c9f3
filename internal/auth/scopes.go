package auth

// Scopes carried by session tokens.
const (
	ScopeActivitiesRead  = "activities:read"
	ScopeActivitiesWrite = "activities:write"
	ScopeProfileWrite    = "profile:write"
)

// DefaultScopes are granted to every signed-in user.
var DefaultScopes = []string{ScopeActivitiesRead, ScopeActivitiesWrite, ScopeProfileWrite}
