package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Credentials are the JetNet login of one account.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Complete reports whether both halves of the login are present.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// SessionKey derives the token-store key for c. The username keeps entries
// readable; the password fingerprint separates sessions after a password
// rotation so a stale pair is never served for new credentials.
func SessionKey(c Credentials) string {
	sum := sha256.Sum256([]byte(c.Username + "\x00" + c.Password))
	return c.Username + "|" + hex.EncodeToString(sum[:8])
}

// TokenPair is one JetNet session: the bearer token for the Authorization
// header and the api token appended to every data URL.
type TokenPair struct {
	BearerToken string    `json:"bearerToken"`
	APIToken    string    `json:"apiToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ValidAt reports whether the pair can still be used at now, i.e. it expires
// more than tokenExpiryBuffer later.
func (p TokenPair) ValidAt(now time.Time) bool {
	if p.BearerToken == "" || p.APIToken == "" {
		return false
	}
	return now.Add(tokenExpiryBuffer).Before(p.ExpiresAt)
}

// loginRequest is the APILogin request body.
type loginRequest struct {
	EmailAddress string `json:"emailaddress"`
	Password     string `json:"password"`
}

// AuthenticationError is returned when a login fails for any reason. Both
// fields are sanitized.
type AuthenticationError struct {
	Message     string
	Description string
}

func (e *AuthenticationError) Error() string {
	if e.Description == "" {
		return e.Message
	}
	return e.Message + ": " + e.Description
}
