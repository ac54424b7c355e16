package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
	"github.com/ZakWinnick/StatsForAdventure/pkg/cache"
	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
)

// GetStatus returns the merged cached and live view of a command.
//
// Terminal records are served from cache without contacting the cloud service. Non-terminal
// records (UNKNOWN included) are re-queried and updated in place. A command ID absent from the
// cache is looked up upstream and, when found, re-synthesized into a cache record; otherwise
// the call fails with CommandNotFoundError.
//
// The cache lock is never held across the network round trip: the per-command lock taken here
// serializes concurrent reconciliations of the same ID and keeps the eviction sweep from
// removing a record that is about to be updated, while leaving unrelated cache operations free
// to proceed.
func (p *Proxy) GetStatus(ctx context.Context, acct *account.Account, commandID string) (cache.CommandRecord, error) {
	if err := p.lockCommand(ctx, commandID); err != nil {
		return cache.CommandRecord{}, err
	}
	defer p.unlockCommand(commandID)

	record, cached := p.commands.Get(commandID)
	if cached && record.Status.Terminal() {
		return record, nil
	}

	state, err := p.gateway.CommandState(ctx, acct.Tokens(), commandID)
	if err != nil {
		if cached {
			// Last-known value stands; the caller should treat this as "status unknown, try
			// again" rather than FAILED.
			return record, err
		}
		return cache.CommandRecord{}, err
	}

	if state == nil {
		if cached {
			return record, nil
		}
		return cache.CommandRecord{}, &protocol.CommandNotFoundError{CommandID: commandID}
	}

	reported := cache.StatusFromState(state.State)
	if cached {
		next := transition(ctx, record.Status, reported)
		p.commands.SetOutcome(commandID, next, state.Raw)
		record.Status = next
		record.Result = state.Raw
		return record, nil
	}

	// Synthesize a record from the upstream view, best effort.
	name := state.Command
	if name == "" {
		name = "unknown"
	}
	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	record = cache.CommandRecord{
		ID:        commandID,
		Command:   name,
		VehicleID: state.VehicleID,
		Status:    reported,
		CreatedAt: createdAt,
		Result:    state.Raw,
	}
	p.commands.Put(record)
	log.Debug("Synthesized cache record for %s from upstream state", commandID)
	return record, nil
}

func (p *Proxy) handleCommandStatus(acct *account.Account, w http.ResponseWriter, commandID string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	record, err := p.GetStatus(ctx, acct, commandID)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "success",
		"command_id":     record.ID,
		"command_status": record.Status,
		"command":        record.Command,
		"timestamp":      record.CreatedAt,
		"result":         record.Result,
	})
}

type historyEntry struct {
	CommandID string              `json:"command_id"`
	Command   string              `json:"command"`
	Status    cache.CommandStatus `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
}

func (p *Proxy) handleCommandHistory(acct *account.Account, w http.ResponseWriter, vehicleID string) {
	if _, ok := acct.Vehicle(vehicleID); !ok {
		err := &protocol.VehicleNotFoundError{VehicleID: vehicleID}
		writeJSONError(w, statusForError(err), err)
		return
	}

	records := p.commands.ListByVehicle(vehicleID)
	history := make([]historyEntry, 0, len(records))
	for _, record := range records {
		history = append(history, historyEntry{
			CommandID: record.ID,
			Command:   record.Command,
			Status:    record.Status,
			Timestamp: record.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "commands": history})
}
