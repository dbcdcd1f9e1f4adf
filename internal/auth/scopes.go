package auth

// OAuth scopes checked by the progression API.
const (
	ScopeWorkoutsRead  = "workouts:read"
	ScopeWorkoutsWrite = "workouts:write"
	ScopeSocialWrite   = "social:write"
)

// AllScopes lists every scope, for locally minted tokens.
var AllScopes = []string{ScopeWorkoutsRead, ScopeWorkoutsWrite, ScopeSocialWrite}
