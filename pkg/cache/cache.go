package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CommandStatus enumerates the lifecycle states of an issued vehicle command. The numeric values
// match the state integers reported by the cloud service.
type CommandStatus int

const (
	StatusPending   CommandStatus = 0
	StatusExecuting CommandStatus = 1
	StatusFailed    CommandStatus = 2
	StatusCompleted CommandStatus = 3
	StatusUnknown   CommandStatus = 4
)

var statusNames = map[CommandStatus]string{
	StatusPending:   "PENDING",
	StatusExecuting: "EXECUTING",
	StatusFailed:    "FAILED",
	StatusCompleted: "COMPLETED",
	StatusUnknown:   "UNKNOWN",
}

// StatusFromState maps a state integer reported by the cloud service onto a CommandStatus,
// falling back to StatusUnknown for unrecognized values.
func StatusFromState(state int) CommandStatus {
	s := CommandStatus(state)
	if _, ok := statusNames[s]; !ok {
		return StatusUnknown
	}
	return s
}

func (s CommandStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNRECOGNIZED(%d)", int(s))
}

// Terminal returns true once no further state transitions are expected. UNKNOWN is deliberately
// non-terminal: a subsequent status query re-attempts reconciliation until the cloud service
// reports a definitive state or the record is evicted.
func (s CommandStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s CommandStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *CommandStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus maps a status name back onto its CommandStatus.
func ParseStatus(name string) (CommandStatus, error) {
	for status, n := range statusNames {
		if n == name {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unrecognized command status %q", name)
}

// CommandRecord tracks one issued vehicle command. The ID is assigned by the cloud service and
// uniquely identifies the record for the lifetime of the cache. CreatedAt is set once at
// insertion and never changes; Result holds the raw payload from the most recent status query
// and is overwritten, never merged.
type CommandRecord struct {
	ID        string          `json:"command_id"`
	Command   string          `json:"command"`
	VehicleID string          `json:"vehicle_id"`
	Status    CommandStatus   `json:"status"`
	CreatedAt time.Time       `json:"timestamp"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// CommandCache is an in-memory store of CommandRecords keyed by command ID. It is not durable:
// after a restart the cache is empty and command history starts over. All methods are safe for
// concurrent use.
type CommandCache struct {
	records map[string]CommandRecord
	lock    sync.Mutex
}

// New returns an empty CommandCache.
func New() *CommandCache {
	return &CommandCache{
		records: make(map[string]CommandRecord),
	}
}

// Put inserts or overwrites the record for record.ID. Command IDs come from the cloud service,
// so an overwrite only occurs when re-synthesizing a record the cache already holds.
func (c *CommandCache) Put(record CommandRecord) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.records[record.ID] = record
}

// Get returns a copy of the record for id. The second return value reports whether the record
// exists.
func (c *CommandCache) Get(id string) (CommandRecord, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	record, ok := c.records[id]
	return record, ok
}

// SetOutcome overwrites the status and result of an existing record, leaving the remaining
// fields untouched. It reports whether the record was present.
func (c *CommandCache) SetOutcome(id string, status CommandStatus, result json.RawMessage) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	record, ok := c.records[id]
	if !ok {
		return false
	}
	record.Status = status
	record.Result = result
	c.records[id] = record
	return true
}

// ListByVehicle returns all records for vehicleID ordered by creation time, newest first. The
// ordering is a contract relied on by the command history view.
func (c *CommandCache) ListByVehicle(vehicleID string) []CommandRecord {
	c.lock.Lock()
	defer c.lock.Unlock()

	var records []CommandRecord
	for _, record := range c.records {
		if record.VehicleID == vehicleID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

// Len returns the number of cached records.
func (c *CommandCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.records)
}

// Evict removes every record that has reached a terminal status or is older than maxAge, and
// returns the number of records removed. The skip callback, when non-nil, lets the caller veto
// removal of individual records (used to avoid deleting a record that a concurrent
// reconciliation is about to update).
func (c *CommandCache) Evict(maxAge time.Duration, skip func(id string) bool) int {
	now := time.Now()

	c.lock.Lock()
	defer c.lock.Unlock()

	var removed []string
	for id, record := range c.records {
		if !record.Status.Terminal() && now.Sub(record.CreatedAt) <= maxAge {
			continue
		}
		if skip != nil && skip(id) {
			continue
		}
		removed = append(removed, id)
	}
	for _, id := range removed {
		delete(c.records, id)
	}
	return len(removed)
}
