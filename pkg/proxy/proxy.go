package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
	"github.com/ZakWinnick/StatsForAdventure/pkg/cache"
	"github.com/ZakWinnick/StatsForAdventure/pkg/connector/rivian"
	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
	"github.com/ZakWinnick/StatsForAdventure/pkg/session"
)

const (
	// DefaultTimeout bounds each upstream round trip made on behalf of a request.
	DefaultTimeout = 30 * time.Second

	// DefaultCommandMaxAge is how long a command record survives in the cache before the
	// eviction sweep removes it regardless of state.
	DefaultCommandMaxAge = 24 * time.Hour

	maxRequestBodyBytes = 1 << 16
)

// Upstream is the capability contract the command subsystem consumes from the vendor client:
// dispatch a signed command and poll its status. The wire format behind it is vendor-owned.
type Upstream interface {
	SendCommand(ctx context.Context, tokens account.TokenSet, req rivian.CommandRequest) (string, error)
	CommandState(ctx context.Context, tokens account.TokenSet, commandID string) (*rivian.CommandState, error)
}

// Gateway extends Upstream with the authentication and telemetry operations the HTTP surface
// needs. rivian.Client implements it.
type Gateway interface {
	Upstream
	CreateCSRFToken(ctx context.Context) (account.TokenSet, error)
	Authenticate(ctx context.Context, tokens account.TokenSet, email, password string) (*rivian.AuthResult, error)
	ValidateOTP(ctx context.Context, tokens account.TokenSet, email, otpCode, otpToken string) (*rivian.AuthResult, error)
	CurrentUser(ctx context.Context, tokens account.TokenSet) ([]account.Vehicle, error)
	VehicleState(ctx context.Context, tokens account.TokenSet, vehicleID string) (json.RawMessage, error)
	LiveChargingSession(ctx context.Context, tokens account.TokenSet, vehicleID string) (json.RawMessage, error)
}

// Proxy exposes an HTTP API for authenticating against the cloud service and sending vehicle
// commands. Construct with New and mount as an http.Handler.
type Proxy struct {
	// Timeout bounds upstream calls made while serving a request.
	Timeout time.Duration

	// CommandMaxAge is the age past which the eviction sweep removes command records.
	CommandMaxAge time.Duration

	gateway  Gateway
	sessions *session.Store
	commands *cache.CommandCache
	cmdLock  sync.Map
}

// New creates a Proxy backed by gateway. Session bearer tokens are signed with signingKey and
// remain valid for tokenTTL.
func New(gateway Gateway, signingKey []byte, tokenTTL time.Duration) *Proxy {
	return &Proxy{
		Timeout:       DefaultTimeout,
		CommandMaxAge: DefaultCommandMaxAge,
		gateway:       gateway,
		sessions:      session.NewStore(signingKey, tokenTTL),
		commands:      cache.New(),
	}
}

// requestError is a client-side validation failure, reported with HTTP 400.
type requestError struct {
	message string
}

func (e *requestError) Error() string {
	return e.message
}

// lockCommand locks a command-ID-specific mutex, blocking until the lock is acquired or ctx
// expires. Reconciliations of the same command ID are serialized so that two concurrent polls
// cannot interleave their cache commits.
func (p *Proxy) lockCommand(ctx context.Context, id string) error {
	lock := make(chan bool, 1)
	for {
		if obj, loaded := p.cmdLock.LoadOrStore(id, lock); loaded {
			select {
			case <-obj.(chan bool):
				// The goroutine that reads from the channel doesn't necessarily own the mutex.
				// This allows the mutex owner to delete the entry from the map, limiting the
				// size of the map to the number of in-flight reconciliations.
			case <-ctx.Done():
				return ctx.Err()
			}
		} else {
			return nil
		}
	}
}

// unlockCommand releases a command-ID-specific mutex.
func (p *Proxy) unlockCommand(id string) {
	obj, ok := p.cmdLock.Load(id)
	if !ok {
		panic("called unlock without owning mutex")
	}
	p.cmdLock.Delete(id)   // Allow someone else to claim the mutex
	close(obj.(chan bool)) // Unblock goroutines
}

// commandBusy reports whether a reconciliation currently holds the lock for id.
func (p *Proxy) commandBusy(id string) bool {
	_, busy := p.cmdLock.Load(id)
	return busy
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func statusForError(err error) int {
	var invalidCmd *protocol.InvalidCommandError
	var missingCreds *protocol.MissingCredentialsError
	var vehicleNotFound *protocol.VehicleNotFoundError
	var commandNotFound *protocol.CommandNotFoundError
	var badRequest *requestError
	var upstreamErr *protocol.UpstreamError
	switch {
	case errors.As(err, &invalidCmd), errors.As(err, &missingCreds), errors.As(err, &badRequest):
		return http.StatusBadRequest
	case errors.As(err, &vehicleNotFound), errors.As(err, &commandNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized
	case protocol.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	body := errorBody{Status: "error"}
	if err == nil {
		body.Message = http.StatusText(code)
	} else {
		body.Message = err.Error()
	}
	if code >= http.StatusInternalServerError {
		log.Error("Returning %s: %s", http.StatusText(code), body.Message)
	}
	writeJSON(w, code, &body)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		log.Error("Error serializing reply %+v: %s", payload, err)
		code = http.StatusInternalServerError
		jsonBytes = []byte(`{"status":"error","message":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	jsonBytes = append(jsonBytes, '\n')
	w.Write(jsonBytes)
}

func decodeBody(req *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBodyBytes))
	if err != nil {
		return &requestError{message: "could not read request body"}
	}
	if len(body) == 0 {
		return &requestError{message: "empty request body"}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &requestError{message: "error occurred while parsing request body"}
	}
	return nil
}

// accountFromRequest resolves the Authorization header against the session store.
func (p *Proxy) accountFromRequest(req *http.Request) (*account.Account, error) {
	bearer, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, session.ErrInvalidToken
	}
	return p.sessions.Resolve(bearer)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Info("Received %s request for %s", req.Method, req.URL.Path)

	path := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	switch {
	case len(path) == 1 && path[0] == "health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	case len(path) == 3 && path[0] == "api" && path[1] == "auth":
		p.serveAuth(w, req, path[2])
		return
	}

	acct, err := p.accountFromRequest(req)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}

	switch {
	case len(path) == 1 && path[0] == "commands":
		if req.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, nil)
			return
		}
		p.handleExecuteCommand(acct, w, req)
	case len(path) == 2 && path[0] == "commands" && path[1] == "available":
		if req.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "commands": Vocabulary()})
	case len(path) == 2 && path[0] == "commands":
		if req.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, nil)
			return
		}
		p.handleCommandStatus(acct, w, path[1])
	case len(path) == 1 && path[0] == "vehicles":
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "vehicles": acct.Vehicles()})
	case len(path) == 2 && path[0] == "vehicles" && path[1] == "refresh":
		p.handleVehicleRefresh(acct, w)
	case len(path) == 3 && path[0] == "vehicles" && path[2] == "commands":
		p.handleCommandHistory(acct, w, path[1])
	case len(path) == 3 && path[0] == "vehicles" && path[2] == "state":
		p.handleVehicleState(acct, w, path[1])
	case len(path) == 3 && path[0] == "vehicles" && path[2] == "charging":
		p.handleChargingSession(acct, w, path[1])
	default:
		writeJSONError(w, http.StatusNotFound, nil)
	}
}

func (p *Proxy) handleVehicleRefresh(acct *account.Account, w http.ResponseWriter) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	vehicles, err := p.gateway.CurrentUser(ctx, acct.Tokens())
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	acct.SetVehicles(vehicles)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "vehicles": vehicles})
}

func (p *Proxy) handleVehicleState(acct *account.Account, w http.ResponseWriter, vehicleID string) {
	if _, ok := acct.Vehicle(vehicleID); !ok {
		err := &protocol.VehicleNotFoundError{VehicleID: vehicleID}
		writeJSONError(w, statusForError(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	state, err := p.gateway.VehicleState(ctx, acct.Tokens(), vehicleID)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "state": state})
}

func (p *Proxy) handleChargingSession(acct *account.Account, w http.ResponseWriter, vehicleID string) {
	if _, ok := acct.Vehicle(vehicleID); !ok {
		err := &protocol.VehicleNotFoundError{VehicleID: vehicleID}
		writeJSONError(w, statusForError(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	data, err := p.gateway.LiveChargingSession(ctx, acct.Tokens(), vehicleID)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "charging": data})
}

// Sweep periodically evicts stale command records and expired sessions until ctx is canceled.
// Run it in its own goroutine.
func (p *Proxy) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := p.EvictCommands()
			expired := p.sessions.Sweep()
			log.Debug("Sweep removed %d command records and %d sessions", removed, expired)
		}
	}
}

// EvictCommands removes terminal and over-age command records, skipping any record currently
// being reconciled, and returns the number removed.
func (p *Proxy) EvictCommands() int {
	return p.commands.Evict(p.CommandMaxAge, p.commandBusy)
}
