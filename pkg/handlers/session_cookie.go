package handlers

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// SessionCookieName is the name of the cookie remembering the caller's upload session.
const SessionCookieName = "cleanlist-session"

const sessionKeyID = "session_id"

// SessionCookie remembers the current upload session id in a signed cookie,
// so a browser can come back to its session without keeping the id itself.
type SessionCookie struct {
	store *sessions.CookieStore
}

// NewSessionCookie creates a cookie-backed store.
//
// The secret can be any passphrase; it is SHA-256 hashed into a 32-byte
// signing key. It must stay the same across restarts for cookies to survive.
// maxAge should match the session idle TTL.
func NewSessionCookie(secret string, secure bool, maxAge time.Duration) *SessionCookie {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionCookie{store: store}
}

// Current returns the session id stored in the request cookie, if any.
func (c *SessionCookie) Current(r *http.Request) (uuid.UUID, bool) {
	session, err := c.store.Get(r, SessionCookieName)
	if err != nil {
		return uuid.Nil, false
	}
	raw, ok := session.Values[sessionKeyID].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Remember stores id in the response cookie.
func (c *SessionCookie) Remember(w http.ResponseWriter, r *http.Request, id uuid.UUID) error {
	// A cookie signed with an old key fails to decode; Get still returns a
	// fresh session in that case, which is all that is needed here.
	session, _ := c.store.Get(r, SessionCookieName)
	session.Values[sessionKeyID] = id.String()
	return session.Save(r, w)
}

// Forget expires the cookie.
func (c *SessionCookie) Forget(w http.ResponseWriter, r *http.Request) error {
	session, _ := c.store.Get(r, SessionCookieName)
	delete(session.Values, sessionKeyID)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
