package common

const (
	// SessionCookieName is the cookie carrying the session token for browser clients.
	SessionCookieName = "session"

	// AuthorizationHeaderName carries "Bearer <token>" for non-browser clients.
	AuthorizationHeaderName = "Authorization"

	// MinUsernameLength and MinPasswordLength are enforced before storage is touched.
	MinUsernameLength = 3
	MinPasswordLength = 6
)
