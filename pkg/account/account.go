// Package account models an end user authenticated against the Rivian cloud service.
//
// An Account bundles the session tokens issued during login with the directory of vehicles the
// user may control. Accounts are held by the session store for the lifetime of a login; they are
// never persisted.
package account

import (
	"sync"
	"time"
)

// RefreshAfter is how long login tokens are trusted before the account is considered stale and
// the user is asked to authenticate again.
const RefreshAfter = 24 * time.Hour

// TokenSet holds the tokens the cloud service issues during authentication. All five are
// required for the GraphQL gateway to accept authenticated requests.
type TokenSet struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	CSRFToken        string `json:"csrf_token"`
	AppSessionToken  string `json:"app_session_token"`
	UserSessionToken string `json:"user_session_token"`
}

// Complete returns true when the token set is sufficient for authenticated gateway requests.
func (t TokenSet) Complete() bool {
	return t.AccessToken != "" && t.CSRFToken != "" && t.AppSessionToken != "" && t.UserSessionToken != ""
}

// Vehicle describes one vehicle attached to the user's account, as reported by the cloud
// service's user information query.
type Vehicle struct {
	ID    string `json:"id"`
	VIN   string `json:"vin"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Account represents an authenticated user. Safe for concurrent use.
type Account struct {
	Email string

	lock      sync.Mutex
	tokens    TokenSet
	vehicles  map[string]Vehicle
	lastLogin time.Time
}

// New creates an Account from the token set issued during login.
func New(email string, tokens TokenSet) *Account {
	return &Account{
		Email:     email,
		tokens:    tokens,
		vehicles:  make(map[string]Vehicle),
		lastLogin: time.Now(),
	}
}

// Tokens returns the current token set.
func (a *Account) Tokens() TokenSet {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.tokens
}

// UpdateTokens replaces the stored token set and resets the login timestamp.
func (a *Account) UpdateTokens(tokens TokenSet) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.tokens = tokens
	a.lastLogin = time.Now()
}

// NeedsRefresh returns true when the login tokens are older than RefreshAfter.
func (a *Account) NeedsRefresh() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return time.Since(a.lastLogin) > RefreshAfter
}

// SetVehicles replaces the account's vehicle directory.
func (a *Account) SetVehicles(vehicles []Vehicle) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.vehicles = make(map[string]Vehicle, len(vehicles))
	for _, v := range vehicles {
		a.vehicles[v.ID] = v
	}
}

// Vehicle resolves id against the account's vehicle directory.
func (a *Account) Vehicle(id string) (Vehicle, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	v, ok := a.vehicles[id]
	return v, ok
}

// Vehicles lists the account's vehicles.
func (a *Account) Vehicles() []Vehicle {
	a.lock.Lock()
	defer a.lock.Unlock()
	vehicles := make([]Vehicle, 0, len(a.vehicles))
	for _, v := range a.vehicles {
		vehicles = append(vehicles, v)
	}
	return vehicles
}
