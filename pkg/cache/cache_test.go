package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testRecord(n int, vehicleID string, status CommandStatus, age time.Duration) CommandRecord {
	return CommandRecord{
		ID:        fmt.Sprintf("cmd-%d", n),
		Command:   "WAKE_VEHICLE",
		VehicleID: vehicleID,
		Status:    status,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestPutGet(t *testing.T) {
	c := New()
	record := testRecord(1, "v1", StatusPending, 0)
	c.Put(record)

	got, ok := c.Get(record.ID)
	if !ok {
		t.Fatalf("record %s not found after Put", record.ID)
	}
	if got.Command != record.Command || got.VehicleID != record.VehicleID || got.Status != StatusPending {
		t.Errorf("retrieved record %+v does not match inserted record %+v", got, record)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Errorf("CreatedAt changed after insertion: %s != %s", got.CreatedAt, record.CreatedAt)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get returned a record for an unused command ID")
	}
}

func TestSetOutcome(t *testing.T) {
	c := New()
	record := testRecord(1, "v1", StatusPending, time.Minute)
	c.Put(record)

	payload := json.RawMessage(`{"state":3}`)
	if !c.SetOutcome(record.ID, StatusCompleted, payload) {
		t.Fatal("SetOutcome reported missing record")
	}
	got, _ := c.Get(record.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status not updated: %s", got.Status)
	}
	if string(got.Result) != string(payload) {
		t.Errorf("result not overwritten: %s", got.Result)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Error("SetOutcome modified CreatedAt")
	}

	if c.SetOutcome("missing", StatusFailed, nil) {
		t.Error("SetOutcome invented a record for an unused command ID")
	}
}

func TestListByVehicleOrdering(t *testing.T) {
	c := New()
	base := time.Now()
	for i, id := range []string{"A", "B", "C"} {
		c.Put(CommandRecord{
			ID:        id,
			Command:   "HONK_AND_FLASH_LIGHTS",
			VehicleID: "v1",
			Status:    StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	c.Put(testRecord(99, "v2", StatusPending, 0))

	records := c.ListByVehicle("v1")
	if len(records) != 3 {
		t.Fatalf("expected 3 records for v1, got %d", len(records))
	}
	for i, want := range []string{"C", "B", "A"} {
		if records[i].ID != want {
			t.Errorf("record %d: expected %s, got %s", i, want, records[i].ID)
		}
	}

	if records := c.ListByVehicle("v3"); len(records) != 0 {
		t.Errorf("expected no records for unused vehicle, got %d", len(records))
	}
}

func TestEvict(t *testing.T) {
	c := New()
	c.Put(testRecord(1, "v1", StatusCompleted, 2*time.Hour)) // terminal and old
	c.Put(testRecord(2, "v1", StatusFailed, time.Minute))    // terminal but young
	c.Put(testRecord(3, "v1", StatusPending, 2*time.Hour))   // non-terminal but old
	c.Put(testRecord(4, "v1", StatusPending, time.Minute))   // non-terminal and young
	c.Put(testRecord(5, "v1", StatusUnknown, time.Minute))   // UNKNOWN is non-terminal

	removed := c.Evict(time.Hour, nil)
	if removed != 3 {
		t.Errorf("expected 3 evictions, got %d", removed)
	}
	for _, id := range []string{"cmd-1", "cmd-2", "cmd-3"} {
		if _, ok := c.Get(id); ok {
			t.Errorf("record %s survived eviction", id)
		}
	}
	for _, id := range []string{"cmd-4", "cmd-5"} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("record %s was evicted prematurely", id)
		}
	}
}

func TestEvictSkip(t *testing.T) {
	c := New()
	c.Put(testRecord(1, "v1", StatusCompleted, 2*time.Hour))
	c.Put(testRecord(2, "v1", StatusCompleted, 2*time.Hour))

	removed := c.Evict(time.Hour, func(id string) bool { return id == "cmd-1" })
	if removed != 1 {
		t.Errorf("expected 1 eviction, got %d", removed)
	}
	if _, ok := c.Get("cmd-1"); !ok {
		t.Error("skip callback was ignored")
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for status, name := range map[CommandStatus]string{
		StatusPending:   "PENDING",
		StatusExecuting: "EXECUTING",
		StatusFailed:    "FAILED",
		StatusCompleted: "COMPLETED",
		StatusUnknown:   "UNKNOWN",
	} {
		data, err := json.Marshal(status)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != fmt.Sprintf("%q", name) {
			t.Errorf("expected %q, got %s", name, data)
		}
		var parsed CommandStatus
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed != status {
			t.Errorf("round trip changed %s to %s", status, parsed)
		}
	}
	if StatusFromState(17) != StatusUnknown {
		t.Error("unrecognized state integer should map to UNKNOWN")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := fmt.Sprintf("cmd-%d-%d", n, j)
				c.Put(CommandRecord{ID: id, VehicleID: "v1", Status: StatusPending, CreatedAt: time.Now()})
				c.Get(id)
				c.SetOutcome(id, StatusCompleted, nil)
				c.ListByVehicle("v1")
			}
		}(i)
	}
	wg.Wait()
	if c.Evict(0, nil) != 800 {
		t.Error("expected all records to be terminal and evicted")
	}
}
