package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warden-auth/warden/internal/account"
)

// SessionManager orchestrates cookie based connection sessions backed by
// Redis. A session is the "connection" handed to auth strategies and the
// principal resolver: it carries the supplied connection identifiers and,
// after authentication, the linked account ID.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-connection session data.
type Session struct {
	ID string

	mu          sync.Mutex
	linkedID    string
	identifiers []account.Identifier
	manager     *SessionManager
	isNew       bool
	dirty       bool
	destroyed   bool
}

type sessionPayload struct {
	LinkedID    string               `json:"linked_id"`
	Identifiers []account.Identifier `json:"identifiers"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// CookieName returns the configured session cookie name.
func (sm *SessionManager) CookieName() string { return sm.cookieName }

// NewSession creates an unsaved session, used for connections arriving
// without a cookie.
func (sm *SessionManager) NewSession() *Session {
	return &Session{manager: sm, isNew: true}
}

// Load loads or creates a session for the request.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.NewSession(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.NewSession()
			sess.ID = cookie.Value
			return sess, nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.NewSession()
	sess.ID = cookie.Value
	sess.linkedID = stored.LinkedID
	sess.identifiers = stored.Identifiers
	sess.isNew = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if !sess.dirty && !sess.isNew {
		return nil
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	payload, err := json.Marshal(sessionPayload{
		LinkedID:    sess.linkedID,
		Identifiers: sess.identifiers,
	})
	if err != nil {
		return err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.ID), payload, sm.ttl).Err(); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(sm.ttl / time.Second),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	})

	sess.isNew = false
	sess.dirty = false
	return nil
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

// SessionID returns the transient session handle. It is never used as a
// principal cache key.
func (s *Session) SessionID() string { return s.ID }

// LinkedID returns the stable account identifier bound to this session, or
// an empty string before authentication.
func (s *Session) LinkedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkedID
}

// Link binds the resolved linked identifier to the session. Re-linking the
// same identifier is a no-op.
func (s *Session) Link(linkedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkedID == linkedID {
		return
	}
	s.linkedID = linkedID
	s.dirty = true
}

// Identifiers returns the connection identifiers supplied for this session.
func (s *Session) Identifiers() []account.Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]account.Identifier(nil), s.identifiers...)
}

// Identifier returns the value of the identifier with the given type.
func (s *Session) Identifier(typ string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identifiers {
		if ident.Type == typ {
			return ident.Value, true
		}
	}
	return "", false
}

// SetIdentifiers replaces the session's connection identifiers.
func (s *Session) SetIdentifiers(identifiers []account.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identifiers = append([]account.Identifier(nil), identifiers...)
	s.dirty = true
}

// Destroy marks the session for deletion on the next Commit.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

// IsNew reports whether the session has not been persisted yet.
func (s *Session) IsNew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNew
}
