package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// Identity is the Discord user attached to a session after login
type Identity struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Email         string `json:"email,omitempty"`
	Tag           string `json:"tag"`
}

// AdminGrant is the privileged review capability. It is granted by the shared
// admin credential and is independent of the Discord identity.
type AdminGrant struct {
	Reviewer  string    `json:"reviewer"`
	GrantedAt time.Time `json:"grantedAt"`
}

// Session is the per-browser state carried in a signed cookie
type Session struct {
	Identity *Identity   `json:"identity,omitempty"`
	Admin    *AdminGrant `json:"admin,omitempty"`

	// ReturnTo is the path to go back to after the next successful login
	ReturnTo string `json:"returnTo,omitempty"`
	// State is the pending OAuth2 state parameter
	State string `json:"state,omitempty"`

	// ID is the server side session id, carried as the token jti
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// IsAuthenticated reports whether a Discord identity is attached
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Identity != nil
}

// IsAdmin reports whether the admin capability was granted
func (s *Session) IsAdmin() bool {
	return s != nil && s.Admin != nil
}

func (s *Session) empty() bool {
	return s.Identity == nil && s.Admin == nil && s.ReturnTo == "" && s.State == ""
}

type claims struct {
	Session *Session `json:"s"`
	jwt.StandardClaims
}

// Registry keeps issued session ids server side so a session can be
// revoked before its token expires
type Registry interface {
	CreateSession(id string, expiresAt time.Time) error
	SessionActive(id string, now time.Time) (bool, error)
	RevokeSession(id string, at time.Time) error
}

// Store reads and writes sessions as HS256 signed tokens in a cookie. A
// session lives for a fixed window from its creation and is only accepted
// while its id is active in the registry.
type Store struct {
	secret     []byte
	cookieName string
	maxAge     time.Duration
	secure     bool
	registry   Registry
}

// NewStore creates a cookie session store backed by registry
func NewStore(secret []byte, cookieName string, maxAge time.Duration, secure bool, registry Registry) *Store {
	return &Store{
		secret:     secret,
		cookieName: cookieName,
		maxAge:     maxAge,
		secure:     secure,
		registry:   registry,
	}
}

// Load returns the session of the request. Missing, tampered, expired,
// revoked or unknown sessions yield a fresh anonymous session.
func (st *Store) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(st.cookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}
	s, err := st.decode(cookie.Value)
	if err != nil {
		return &Session{}
	}
	active, err := st.registry.SessionActive(s.ID, time.Now())
	if err != nil || !active {
		return &Session{}
	}
	return s
}

// Save writes the session cookie. An empty session clears the cookie. A
// session without an id is registered under a new one first.
func (st *Store) Save(w http.ResponseWriter, s *Session) error {
	if s.empty() {
		st.Clear(w)
		return nil
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = time.Now().Add(st.maxAge)
	}
	if s.ID == "" {
		id := uuid.NewString()
		if err := st.registry.CreateSession(id, s.ExpiresAt); err != nil {
			return fmt.Errorf("register session: %w", err)
		}
		s.ID = id
	}
	token, err := st.encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     st.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie
func (st *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     st.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Revoke invalidates the id of s server side. The next Save issues a new
// id, so Revoke followed by Save rotates the session.
func (st *Store) Revoke(s *Session) error {
	if s.ID == "" {
		return nil
	}
	if err := st.registry.RevokeSession(s.ID, time.Now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.ID = ""
	return nil
}

// ServeHTTP loads the session into the request context, negroni style
func (st *Store) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	next(w, r.WithContext(WithSession(r.Context(), st.Load(r))))
}

func (st *Store) encode(s *Session) (string, error) {
	c := &claims{
		Session: s,
		StandardClaims: jwt.StandardClaims{
			Id:        s.ID,
			ExpiresAt: s.ExpiresAt.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(st.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

func (st *Store) decode(value string) (*Session, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(value, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return st.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || c.Session == nil || c.Id == "" {
		return nil, errors.New("invalid session token")
	}
	c.Session.ID = c.Id
	c.Session.ExpiresAt = time.Unix(c.ExpiresAt, 0)
	return c.Session, nil
}

type sessionKey struct{}

// WithSession attaches s to ctx
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the request session, never nil
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
