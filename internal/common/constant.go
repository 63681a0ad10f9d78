package common

const (
	// SessionCookieName is the cookie carrying the signed session token.
	SessionCookieName = "session"

	// AuthSecretKey is the secrets table key holding the session signing key.
	AuthSecretKey = "auth_secret"

	// ActivityFeedLimit caps the per-user activity listing.
	ActivityFeedLimit = 10
)
