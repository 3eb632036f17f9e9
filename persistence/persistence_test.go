package persistence_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tailored-agentic-units/persist/observability"
	"github.com/tailored-agentic-units/persist/persistence"
)

func TestSetup_CreatesRoot(t *testing.T) {
	base := t.TempDir()

	pctx, err := persistence.Setup(&persistence.Config{
		Service: "PersistenceTestInstance",
		Path:    "etc/persist",
		Base:    base,
	}, persistence.WithObserver(observability.Discard))
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	wantRoot := filepath.Join(base, "etc", "persist")
	if pctx.Root() != wantRoot {
		t.Errorf("Root() = %q, want %q", pctx.Root(), wantRoot)
	}
	if info, err := os.Stat(wantRoot); err != nil || !info.IsDir() {
		t.Errorf("root directory not created: %v", err)
	}
	if pctx.Service() != "PersistenceTestInstance" {
		t.Errorf("Service() = %q, want %q", pctx.Service(), "PersistenceTestInstance")
	}
	if want := filepath.Join(wantRoot, "PersistenceTestInstance.dat"); pctx.Path() != want {
		t.Errorf("Path() = %q, want %q", pctx.Path(), want)
	}
}

func TestSetup_ExistingRoot(t *testing.T) {
	root := t.TempDir()

	for range 2 {
		if _, err := persistence.Setup(&persistence.Config{Path: root}, persistence.WithObserver(nil)); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
	}
}

func TestSetup_DirectoryCreateFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := persistence.Setup(&persistence.Config{Path: filepath.Join(file, "persist")})
	if !errors.Is(err, persistence.ErrDirectoryCreate) {
		t.Errorf("Setup() error = %v, want %v", err, persistence.ErrDirectoryCreate)
	}
}

func TestSetup_UnknownObserver(t *testing.T) {
	_, err := persistence.Setup(&persistence.Config{Path: t.TempDir(), Observer: "nonexistent"})
	if err == nil {
		t.Error("Setup() should fail for an unregistered observer")
	}
}

func TestSetup_NilConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	pctx, err := persistence.Setup(nil, persistence.WithObserver(observability.Discard))
	if err != nil {
		t.Fatalf("Setup(nil) error = %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if want := filepath.Join(wd, "etc", "persist"); pctx.Root() != want {
		t.Errorf("Root() = %q, want %q", pctx.Root(), want)
	}
	if want := filepath.Join(wd, "etc", "persist", "persistence.dat"); pctx.Path() != want {
		t.Errorf("Path() = %q, want %q", pctx.Path(), want)
	}
}

func TestSetup_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := &captureObserver{}

	pctx, err := persistence.Setup(
		&persistence.Config{Service: "svc", Path: t.TempDir()},
		persistence.WithObserver(obs),
		persistence.WithPrometheus(reg, "persist"),
	)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	engine := pctx.NewEngine("unit")
	engine.Store("foo", 1)
	if err := engine.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The configured observer and the event counter both see every event.
	if got := obs.count(persistence.EventSave); got != 1 {
		t.Errorf("save events = %d, want 1", got)
	}
	const want = `
# HELP persist_events_total Persistence events observed, by type and level.
# TYPE persist_events_total counter
persist_events_total{level="DEBUG",type="persistence.hydrate"} 1
persist_events_total{level="DEBUG",type="persistence.save"} 1
persist_events_total{level="INFO",type="persistence.setup"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "persist_events_total"); err != nil {
		t.Error(err)
	}
}

func TestSetup_WithPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := &persistence.Config{Path: t.TempDir()}

	if _, err := persistence.Setup(cfg, persistence.WithObserver(observability.Discard), persistence.WithPrometheus(reg, "persist")); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := persistence.Setup(cfg, persistence.WithObserver(observability.Discard), persistence.WithPrometheus(reg, "persist")); err == nil {
		t.Error("second Setup() on the same registry should fail")
	}
}

func TestSetup_ObserverFromRegistry(t *testing.T) {
	obs := &captureObserver{}
	observability.Register("persistence-test", func() observability.Observer { return obs })

	if _, err := persistence.Setup(&persistence.Config{Path: t.TempDir(), Observer: "persistence-test"}); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if got := obs.count(persistence.EventSetup); got != 1 {
		t.Errorf("setup events = %d, want 1", got)
	}
}

func TestSetup_EmitsEvent(t *testing.T) {
	obs := &captureObserver{}

	if _, err := persistence.Setup(&persistence.Config{Service: "svc", Path: t.TempDir()}, persistence.WithObserver(obs)); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if got := obs.count(persistence.EventSetup); got != 1 {
		t.Errorf("setup events = %d, want 1", got)
	}
}

func TestSetup_EnginesKeepTheirContext(t *testing.T) {
	root := t.TempDir()

	first := setupContext(t, root, "first", nil)
	engine := first.NewEngine("unit")

	second := setupContext(t, root, "second", nil)

	if engine.Path() != first.Path() {
		t.Errorf("engine Path() = %q, want %q", engine.Path(), first.Path())
	}
	if engine.Path() == second.Path() {
		t.Error("engine followed a later Setup")
	}
}

func setupContext(t *testing.T, root, service string, obs observability.Observer, opts ...persistence.Option) *persistence.Context {
	t.Helper()

	if obs == nil {
		obs = observability.Discard
	}
	opts = append([]persistence.Option{persistence.WithObserver(obs)}, opts...)

	pctx, err := persistence.Setup(&persistence.Config{Service: service, Path: root}, opts...)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return pctx
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) count(t observability.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
