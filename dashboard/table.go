// Package dashboard is the robot-side key/value service behind the driver
// station dashboard. Robot code publishes telemetry into the table every
// cycle; operators push value overrides back through the web API. The same
// key carries both directions, which is what lets a dashboard widget display
// a gain and accept edits to it in place.
package dashboard

import (
	"sort"
	"sync"

	"github.com/asdine/storm/v3"
)

// Entry is one dashboard key. Override marks values typed in by an operator;
// published telemetry never sets it.
type Entry struct {
	Key      string  `storm:"id" json:"key"`
	Value    float64 `json:"value"`
	Override bool    `json:"override"`
}

type Table struct {
	mu        sync.RWMutex
	values    map[string]float64
	overrides map[string]float64
	db        *storm.DB

	updates chan Entry
}

// NewTable builds a table. With a non-nil db, operator overrides are
// persisted and reloaded, so tuning values entered at the practice field
// survive a robot-code restart.
func NewTable(db *storm.DB) (*Table, error) {
	t := &Table{
		values:    make(map[string]float64),
		overrides: make(map[string]float64),
		db:        db,
		updates:   make(chan Entry, 64),
	}

	if db != nil {
		var saved []Entry
		if err := db.All(&saved); err != nil && err != storm.ErrNotFound {
			return nil, err
		}
		for _, e := range saved {
			t.overrides[e.Key] = e.Value
		}
	}

	return t, nil
}

// Publish records a telemetry value. Repeated identical values do not
// generate stream updates.
func (t *Table) Publish(key string, value float64) {
	t.mu.Lock()
	prev, seen := t.values[key]
	t.values[key] = value
	t.mu.Unlock()

	if !seen || prev != value {
		t.notify(Entry{Key: key, Value: value})
	}
}

// ReadBack returns the operator override for key, or def when the operator
// has not touched it. Overrides stick until changed or cleared.
func (t *Table) ReadBack(key string, def float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if v, ok := t.overrides[key]; ok {
		return v
	}
	return def
}

// SetOverride stores an operator-entered value for key.
func (t *Table) SetOverride(key string, value float64) error {
	t.mu.Lock()
	t.overrides[key] = value
	t.mu.Unlock()

	if t.db != nil {
		if err := t.db.Save(&Entry{Key: key, Value: value, Override: true}); err != nil {
			return err
		}
	}

	t.notify(Entry{Key: key, Value: value, Override: true})
	return nil
}

// ClearOverride removes an operator override, returning the key to
// telemetry-only behavior.
func (t *Table) ClearOverride(key string) error {
	t.mu.Lock()
	delete(t.overrides, key)
	value := t.values[key]
	t.mu.Unlock()

	if t.db != nil {
		if err := t.db.DeleteStruct(&Entry{Key: key}); err != nil && err != storm.ErrNotFound {
			return err
		}
	}

	t.notify(Entry{Key: key, Value: value})
	return nil
}

// Entries snapshots the table for the HTTP API, sorted by key. Overridden
// keys report the operator value.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]Entry, 0, len(t.values)+len(t.overrides))
	seen := make(map[string]bool, len(t.overrides))

	for key, v := range t.overrides {
		entries = append(entries, Entry{Key: key, Value: v, Override: true})
		seen[key] = true
	}
	for key, v := range t.values {
		if !seen[key] {
			entries = append(entries, Entry{Key: key, Value: v})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Updates is the live change stream consumed by the websocket broadcaster.
// Slow consumers lose updates rather than stalling the robot loop.
func (t *Table) Updates() <-chan Entry {
	return t.updates
}

func (t *Table) notify(e Entry) {
	select {
	case t.updates <- e:
	default:
	}
}
