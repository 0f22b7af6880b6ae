package redis

import "fmt"

const (
	// KeyPrefixSession is the prefix for session keys
	KeyPrefixSession = "smartmarks:session:"
	// KeySessionExpiry is the sorted set of session IDs scored by expiry (unix seconds)
	KeySessionExpiry = "smartmarks:sessions:expiry"
	// KeyPrefixOAuthState is the prefix for pending OAuth state keys
	KeyPrefixOAuthState = "smartmarks:oauth:state:"
)

// SessionKey returns the Redis key for a session by ID
func SessionKey(id string) string {
	return KeyPrefixSession + id
}

// SessionExpiryKey returns the key of the session expiry index
func SessionExpiryKey() string {
	return KeySessionExpiry
}

// OAuthStateKey returns the Redis key for a pending OAuth state
func OAuthStateKey(state string) string {
	return KeyPrefixOAuthState + state
}

// ExtractSessionID extracts the session ID from a Redis key
func ExtractSessionID(key string) (string, error) {
	if len(key) <= len(KeyPrefixSession) || key[:len(KeyPrefixSession)] != KeyPrefixSession {
		return "", fmt.Errorf("invalid session key: %s", key)
	}
	return key[len(KeyPrefixSession):], nil
}
