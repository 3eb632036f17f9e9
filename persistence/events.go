package persistence

import "github.com/tailored-agentic-units/persist/observability"

// Persistence event types.
const (
	EventSetup      observability.EventType = "persistence.setup"
	EventHydrate    observability.EventType = "persistence.hydrate"
	EventClear      observability.EventType = "persistence.clear"
	EventSave       observability.EventType = "persistence.save"
	EventSaveFailed observability.EventType = "persistence.save.failed"
	EventReadFailed observability.EventType = "persistence.read.failed"
)
