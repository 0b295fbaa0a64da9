// Package session manages device-local sessions. It is the collaborator
// behind the revoke_session, require_authentication, force_logout, and
// revoke_credentials actions.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("session revoked")
)

// Claims are the JWT claims carried by a session token.
type Claims struct {
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Store issues and validates session tokens and tracks revocations and
// re-authentication demands in memory.
type Store struct {
	secret      []byte
	ttl         time.Duration
	mu          sync.Mutex
	revoked     map[string]bool // session ID -> revoked
	needsReauth map[string]bool // user ID -> must re-authenticate
	byUser      map[string][]string
}

// NewStore creates a session store signing tokens with the given secret.
func NewStore(secret []byte, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Store{
		secret:      secret,
		ttl:         ttl,
		revoked:     make(map[string]bool),
		needsReauth: make(map[string]bool),
		byUser:      make(map[string][]string),
	}
}

// Create issues a new session token for the user on this device.
func (s *Store) Create(userID, deviceID string) (sessionID, token string, err error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", "", err
	}
	sessionID = id.String()

	claims := Claims{
		UserID:    userID,
		DeviceID:  deviceID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "sentinel",
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tok.SignedString(s.secret)
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.byUser[userID] = append(s.byUser[userID], sessionID)
	s.mu.Unlock()

	return sessionID, token, nil
}

// Validate parses a token and checks it against the revocation and
// re-authentication state.
func (s *Store) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[claims.SessionID] {
		return nil, ErrRevoked
	}
	if s.needsReauth[claims.UserID] {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke invalidates a single session.
func (s *Store) Revoke(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[sessionID] = true
}

// RevokeUser invalidates every session of a user (force_logout,
// revoke_credentials).
func (s *Store) RevokeUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.byUser[userID] {
		if !s.revoked[id] {
			s.revoked[id] = true
			n++
		}
	}
	return n
}

// RequireReauth flags a user so existing tokens stop validating until
// ClearReauth is called after a fresh authentication.
func (s *Store) RequireReauth(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsReauth[userID] = true
}

// ClearReauth lifts a re-authentication demand.
func (s *Store) ClearReauth(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.needsReauth, userID)
}
