package persistence

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/persist/codec"
	"github.com/tailored-agentic-units/persist/observability"
)

// Engine is one unit's view of its service's backing file. Store, Load,
// HasKey and Clear work on an in-memory slice that is read from disk once, on
// first use. Only Save writes to disk. All methods are safe for concurrent
// use.
type Engine struct {
	id       string
	unit     string
	service  string
	path     string
	observer observability.Observer
	metrics  *Metrics

	mu       sync.Mutex
	hydrated bool
	values   map[string]any
	cleared  []string
}

// NewEngine creates an Engine for unit bound to the Context's service and
// backing file. No I/O happens until the first operation.
func (c *Context) NewEngine(unit string) *Engine {
	return &Engine{
		id:       uuid.Must(uuid.NewV7()).String(),
		unit:     unit,
		service:  c.service,
		path:     c.Path(),
		observer: c.observer,
		metrics:  c.metrics,
		values:   make(map[string]any),
	}
}

// ID returns the engine instance identifier.
func (e *Engine) ID() string {
	return e.id
}

// Unit returns the unit identifier the engine stores data under.
func (e *Engine) Unit() string {
	return e.unit
}

// Path returns the backing file path.
func (e *Engine) Path() string {
	return e.path
}

// Store sets key to value in memory. Call Save to persist it.
func (e *Engine) Store(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hydrate()
	e.values[key] = value
}

// Load returns the in-memory value for key, or def when key is absent.
func (e *Engine) Load(key string, def any) any {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hydrate()
	if v, ok := e.values[key]; ok {
		return v
	}
	return def
}

// HasKey reports whether key is present in memory.
func (e *Engine) HasKey(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hydrate()
	_, ok := e.values[key]
	return ok
}

// Clear removes key from memory and records it so the next Save also removes
// it from the unit's slice on disk, whatever that slice holds by then.
func (e *Engine) Clear(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hydrate()
	delete(e.values, key)
	e.cleared = append(e.cleared, key)

	e.emit(EventClear, observability.LevelVerbose, map[string]any{"key": key})
}

// Keys returns the in-memory keys in sorted order.
func (e *Engine) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hydrate()
	return slices.Sorted(maps.Keys(e.values))
}

// Snapshot returns a shallow copy of the in-memory slice.
func (e *Engine) Snapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hydrate()
	return maps.Clone(e.values)
}

// Save merges the unit's slice into the backing file. Under the process-wide
// file lock it rereads the file, removes every cleared key from the unit's
// stored slice, overlays the in-memory values and rewrites the whole file.
// Slices of other units are written back unchanged. An unreadable file is
// treated as empty; a failed write is returned. Events are emitted after the
// file lock is released.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	keys, units, readErr, err := e.writeMerged()
	elapsed := time.Since(start)

	if readErr != nil {
		e.readFailed(readErr)
	}
	e.metrics.observeSave(e.service, elapsed, err)

	if err != nil {
		e.emit(EventSaveFailed, observability.LevelError, map[string]any{
			"error": err.Error(),
		})
		return err
	}

	e.emit(EventSave, observability.LevelVerbose, map[string]any{
		"keys":     keys,
		"units":    units,
		"duration": elapsed,
	})
	return nil
}

// writeMerged performs Save's read-merge-write while holding fileLock. It
// reports sizes and any read failure for the caller to publish.
func (e *Engine) writeMerged() (keys, units int, readErr, err error) {
	fileLock.Lock()
	defer fileLock.Unlock()

	data, readErr := loadOrEmpty(e.path)

	merged := sliceOf(data, e.unit)
	for _, key := range e.cleared {
		delete(merged, key)
	}
	maps.Copy(merged, e.values)
	data[e.unit] = merged

	err = codec.SaveBinary(e.path, data)
	return len(merged), len(data), readErr, err
}

func (e *Engine) hydrate() {
	if e.hydrated {
		return
	}
	e.hydrated = true

	fileLock.Lock()
	data, err := loadOrEmpty(e.path)
	fileLock.Unlock()

	if err != nil {
		e.readFailed(err)
	}
	e.values = sliceOf(data, e.unit)

	e.emit(EventHydrate, observability.LevelVerbose, map[string]any{
		"keys": len(e.values),
	})
}

func (e *Engine) readFailed(err error) {
	e.metrics.observeReadFailure(e.service)
	e.emit(EventReadFailed, observability.LevelError, map[string]any{
		"error": err.Error(),
	})
}

// loadOrEmpty reads a backing file. The caller holds fileLock. On failure the
// error is returned alongside an empty mapping.
func loadOrEmpty(path string) (map[string]any, error) {
	data, err := codec.LoadBinary(path)
	if err != nil {
		return map[string]any{}, err
	}
	return data, nil
}

func (e *Engine) emit(t observability.EventType, level observability.Level, data map[string]any) {
	data["service"] = e.service
	data["unit"] = e.unit
	data["engine"] = e.id
	data["path"] = e.path

	e.observer.OnEvent(context.Background(), observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "persistence.Engine",
		Data:      data,
	})
}

// sliceOf returns a mutable copy of unit's entry in data, or an empty map.
func sliceOf(data map[string]any, unit string) map[string]any {
	if s, ok := data[unit].(map[string]any); ok && s != nil {
		return maps.Clone(s)
	}
	return make(map[string]any)
}
