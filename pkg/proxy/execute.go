package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
	"github.com/ZakWinnick/StatsForAdventure/pkg/cache"
	"github.com/ZakWinnick/StatsForAdventure/pkg/connector/rivian"
	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
)

// ExecuteRequest is the body of POST /commands. The four signing credentials are required by
// the cloud service's command-signing protocol; they are enrolled through the vendor's mobile
// app and passed through opaquely.
type ExecuteRequest struct {
	Command    string            `json:"command"`
	VehicleID  string            `json:"vehicle_id"`
	PhoneID    string            `json:"phone_id"`
	IdentityID string            `json:"identity_id"`
	VehicleKey string            `json:"vehicle_key"`
	PrivateKey string            `json:"private_key"`
	Params     RequestParameters `json:"params,omitempty"`
}

func (r *ExecuteRequest) signingCredentials() error {
	for _, credential := range []struct {
		field string
		value string
	}{
		{"phone_id", r.PhoneID},
		{"identity_id", r.IdentityID},
		{"vehicle_key", r.VehicleKey},
		{"private_key", r.PrivateKey},
	} {
		if credential.value == "" {
			return &protocol.MissingCredentialsError{Field: credential.field}
		}
	}
	return nil
}

// Execute validates and dispatches a command on behalf of acct, records it in the command
// cache, and returns the new record. Validation failures surface before any network call; an
// upstream failure leaves no cache entry behind and is never retried automatically.
func (p *Proxy) Execute(ctx context.Context, acct *account.Account, req ExecuteRequest) (cache.CommandRecord, error) {
	command, err := ParseCommand(req.Command, req.Params)
	if err != nil {
		return cache.CommandRecord{}, err
	}
	if err := req.signingCredentials(); err != nil {
		return cache.CommandRecord{}, err
	}
	if _, ok := acct.Vehicle(req.VehicleID); !ok {
		return cache.CommandRecord{}, &protocol.VehicleNotFoundError{VehicleID: req.VehicleID}
	}

	log.Debug("Executing %s on %s", command, req.VehicleID)
	commandID, err := p.gateway.SendCommand(ctx, acct.Tokens(), rivian.CommandRequest{
		Command:    string(command),
		VehicleID:  req.VehicleID,
		PhoneID:    req.PhoneID,
		IdentityID: req.IdentityID,
		VehicleKey: req.VehicleKey,
		PrivateKey: req.PrivateKey,
		Params:     req.Params,
	})
	if err != nil {
		return cache.CommandRecord{}, err
	}

	record := cache.CommandRecord{
		ID:        commandID,
		Command:   string(command),
		VehicleID: req.VehicleID,
		Status:    cache.StatusPending,
		CreatedAt: time.Now(),
	}
	p.commands.Put(record)
	log.Info("Command %s dispatched to %s as %s", command, req.VehicleID, commandID)
	return record, nil
}

func (p *Proxy) handleExecuteCommand(acct *account.Account, w http.ResponseWriter, req *http.Request) {
	var body ExecuteRequest
	if err := decodeBody(req, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	record, err := p.Execute(ctx, acct, body)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "success",
		"command_id": record.ID,
		"message":    "Command " + record.Command + " sent successfully",
	})
}
