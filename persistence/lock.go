package persistence

import (
	"sync"

	"github.com/tailored-agentic-units/persist/codec"
)

// fileLock serializes every backing file read and write in the process,
// across all owners.
var fileLock sync.Mutex

// ReadFile returns the full mapping stored in a backing file while holding
// the process-wide file lock. Unit identifiers map to that unit's slice.
func ReadFile(path string) (map[string]any, error) {
	fileLock.Lock()
	defer fileLock.Unlock()

	return codec.LoadBinary(path)
}
