package framework

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gosgi/internal/config"
	"gosgi/internal/events"
	"gosgi/internal/module"
)

func testConfig(t *testing.T) config.FrameworkConfig {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	return cfg
}

func newStartedFramework(t *testing.T, mutate ...func(*config.FrameworkConfig)) *Framework {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}
	fw, err := New(Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	t.Cleanup(func() {
		_ = fw.Stop()
		fw.WaitForStop(5 * time.Second)
	})
	return fw
}

func install(t *testing.T, fw *Framework, location, descriptor string) *Bundle {
	t.Helper()
	b, err := fw.Install(location, strings.NewReader(descriptor))
	require.NoError(t, err)
	return b
}

// recorder collects events of every category.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(fw *Framework) *recorder {
	r := &recorder{}
	for _, c := range []events.Category{events.CategoryFramework, events.CategoryBundle, events.CategoryService} {
		// Owner -1 keeps the listener across framework shutdown.
		fw.Events().AddListener(module.SystemBundleID-1, c, func(e events.Event) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) reasons(bundle module.BundleID) []events.EventReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.EventReason
	for _, e := range r.events {
		if e.Bundle == bundle {
			out = append(out, e.Reason)
		}
	}
	return out
}

func (r *recorder) count(reason events.EventReason) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Reason == reason {
			n++
		}
	}
	return n
}

func (r *recorder) find(reason events.EventReason) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Reason == reason {
			return e, true
		}
	}
	return events.Event{}, false
}

func refresh(t *testing.T, fw *Framework, ids ...module.BundleID) {
	t.Helper()
	select {
	case <-fw.RefreshPackages(ids...):
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not complete")
	}
}

const (
	apiV1 = `
symbolicName: org.acme.api
version: 1.0.0
exports:
  - name: org.acme.api
    version: 1.0.0
packages:
  org.acme.api: [Greeter, Legacy]
`
	apiV2 = `
symbolicName: org.acme.api
version: 2.0.0
exports:
  - name: org.acme.api
    version: 2.0.0
packages:
  org.acme.api: [Greeter, Farewell]
`
	client = `
symbolicName: org.acme.client
version: 1.0.0
imports:
  - name: org.acme.api
    version: "[1.0,3.0)"
packages:
  org.acme.client: [Main]
`
)
