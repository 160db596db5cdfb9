package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials is the single shared admin login. Every successful login
// is granted the same reviewer label.
type AdminCredentials struct {
	Username string
	// Password is either plain text or a bcrypt hash ("$2a$...")
	Password string
	Reviewer string
}

// Verify checks a submitted username and password. An unconfigured
// credential never matches.
func (c AdminCredentials) Verify(username, password string) bool {
	if c.Username == "" || c.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	var passOK bool
	if strings.HasPrefix(c.Password, "$2") {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}
	return userOK && passOK
}

// Grant issues the admin capability
func (c AdminCredentials) Grant(now time.Time) *AdminGrant {
	return &AdminGrant{
		Reviewer:  c.Reviewer,
		GrantedAt: now.UTC(),
	}
}
