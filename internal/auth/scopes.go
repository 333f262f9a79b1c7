package auth

const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
	ScopeWorkflowRead  = "workflows:read"
	ScopeWorkflowWrite = "workflows:write"
)

// LoginScopes are requested by the browser login flow.
var LoginScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
}

// AllScopes defines the full set of scopes offered by the API docs and the CLI.
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeOfflineAccess,
	ScopeWorkflowRead,
	ScopeWorkflowWrite,
}
