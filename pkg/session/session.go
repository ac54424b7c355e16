// Package session caches authenticated user sessions in process memory.
//
// Each successful login creates a session holding the user's cloud-service tokens. The client
// receives a signed bearer token that references the session by ID; the raw cloud-service tokens
// never leave the proxy. Sessions expire when their tokens become stale.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
)

var (
	ErrNotFound     = errors.New("session not found or expired")
	ErrInvalidToken = errors.New("invalid session token")
)

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Store maps session IDs to authenticated accounts. Safe for concurrent use.
type Store struct {
	signingKey []byte
	tokenTTL   time.Duration

	lock     sync.Mutex
	sessions map[string]*account.Account
}

// NewStore creates a session store. Bearer tokens are HMAC-signed with signingKey and expire
// after tokenTTL.
func NewStore(signingKey []byte, tokenTTL time.Duration) *Store {
	return &Store{
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
		sessions:   make(map[string]*account.Account),
	}
}

// Create registers acct under a fresh session ID and returns the ID together with a signed
// bearer token for it.
func (s *Store) Create(acct *account.Account) (string, string, error) {
	id := uuid.NewString()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}

	s.lock.Lock()
	s.sessions[id] = acct
	s.lock.Unlock()
	return id, signed, nil
}

// Resolve verifies a bearer token and returns the account it references. Stale accounts are
// dropped and reported as not found, forcing the user through login again.
func (s *Store) Resolve(bearer string) (*account.Account, error) {
	var parsed claims
	token, err := jwt.ParseWithClaims(bearer, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	s.lock.Lock()
	acct, ok := s.sessions[parsed.SessionID]
	s.lock.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if acct.NeedsRefresh() {
		s.Delete(parsed.SessionID)
		return nil, ErrNotFound
	}
	return acct, nil
}

// Revoke verifies a bearer token and removes the session it references. Revoking an unknown or
// already-expired session is not an error.
func (s *Store) Revoke(bearer string) error {
	var parsed claims
	token, err := jwt.ParseWithClaims(bearer, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	s.Delete(parsed.SessionID)
	return nil
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, id)
}

// Sweep drops sessions whose accounts have gone stale and returns the number removed.
func (s *Store) Sweep() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	removed := 0
	for id, acct := range s.sessions {
		if acct.NeedsRefresh() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.sessions)
}
