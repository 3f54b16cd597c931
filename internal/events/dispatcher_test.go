package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversByCategory(t *testing.T) {
	d := NewDispatcher()

	var bundleEvents, frameworkEvents []Event
	d.AddListener(1, CategoryBundle, func(e Event) { bundleEvents = append(bundleEvents, e) })
	d.AddListener(1, CategoryFramework, func(e Event) { frameworkEvents = append(frameworkEvents, e) })

	d.Fire(Event{Reason: ReasonBundleInstalled, Bundle: 3, SymbolicName: "org.acme", Location: "file:acme.yaml"})
	d.FireFramework(ReasonPackagesRefreshed, 0, "", nil)

	require.Len(t, bundleEvents, 1)
	assert.Equal(t, "Bundle org.acme [3] installed from file:acme.yaml", bundleEvents[0].Message)
	assert.Equal(t, EventTypeNormal, bundleEvents[0].Type)
	assert.False(t, bundleEvents[0].Timestamp.IsZero())

	require.Len(t, frameworkEvents, 1)
	assert.Equal(t, ReasonPackagesRefreshed, frameworkEvents[0].Reason)
}

func TestDispatcherRecoversListenerPanic(t *testing.T) {
	d := NewDispatcher()

	called := false
	d.AddListener(1, CategoryFramework, func(Event) { panic("boom") })
	d.AddListener(2, CategoryFramework, func(Event) { called = true })

	assert.NotPanics(t, func() {
		d.FireFramework(ReasonFrameworkError, 4, "bad", errors.New("activator failed"))
	})
	assert.True(t, called)
}

func TestDispatcherRemoveListeners(t *testing.T) {
	d := NewDispatcher()

	count := 0
	d.AddListener(5, CategoryBundle, func(Event) { count++ })
	id := d.AddListener(5, CategoryBundle, func(Event) { count++ })
	d.AddListener(6, CategoryBundle, func(Event) { count++ })

	d.RemoveListener(id)
	assert.Equal(t, 1, d.ListenerCount(5))
	assert.Equal(t, 1, d.RemoveListeners(5))
	assert.Equal(t, 0, d.ListenerCount(5))

	d.Fire(Event{Reason: ReasonBundleStarted, Bundle: 1})
	assert.Equal(t, 1, count)
}

func TestDispatcherSubscribeNonBlocking(t *testing.T) {
	d := NewDispatcher()
	ch := make(chan Event, 1)
	d.Subscribe(ch)

	d.Fire(Event{Reason: ReasonBundleStarted, Bundle: 1})
	d.Fire(Event{Reason: ReasonBundleStopped, Bundle: 1})

	e := <-ch
	assert.Equal(t, ReasonBundleStarted, e.Reason)
	select {
	case extra := <-ch:
		t.Fatalf("expected second event to be dropped, got %s", extra.Reason)
	default:
	}

	d.Unsubscribe(ch)
	d.Fire(Event{Reason: ReasonBundleStarted, Bundle: 1})
	assert.Empty(t, ch)
}

func TestMessageTemplates(t *testing.T) {
	e := NewMessageTemplateEngine()

	tests := []struct {
		name     string
		reason   EventReason
		data     EventData
		expected string
	}{
		{
			name:     "framework error with cause",
			reason:   ReasonFrameworkError,
			data:     EventData{Name: "org.acme", Bundle: 2, Error: "activator failed"},
			expected: "Framework error in bundle org.acme [2]: activator failed",
		},
		{
			name:     "framework error without bundle",
			reason:   ReasonFrameworkError,
			expected: "Framework error",
		},
		{
			name:     "install without location",
			reason:   ReasonBundleInstalled,
			data:     EventData{Name: "a", Bundle: 1},
			expected: "Bundle a [1] installed from unknown location",
		},
		{
			name:     "service contracts joined",
			reason:   ReasonServiceRegistered,
			data:     EventData{ServiceID: 7, Contracts: []string{"log.Service", "log.Reader"}, Bundle: 3},
			expected: "Service 7 [log.Service, log.Reader] registered by bundle 3",
		},
		{
			name:     "start level",
			reason:   ReasonStartLevelChanged,
			data:     EventData{StartLevel: 3},
			expected: "Framework start level changed to 3",
		},
		{
			name:     "unknown reason falls back",
			reason:   EventReason("CUSTOM"),
			data:     EventData{Name: "x", Bundle: 9},
			expected: "Event: CUSTOM for x [9]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Render(tt.reason, tt.data))
		})
	}
}

func TestSetTemplate(t *testing.T) {
	e := NewMessageTemplateEngine()

	require.NoError(t, e.SetTemplate(ReasonBundleStarted, "{{.Name | upper}} up"))
	assert.Equal(t, "ACME up", e.Render(ReasonBundleStarted, EventData{Name: "acme"}))

	src, ok := e.GetTemplate(ReasonBundleStarted)
	assert.True(t, ok)
	assert.Equal(t, "{{.Name | upper}} up", src)

	assert.Error(t, e.SetTemplate(ReasonBundleStarted, "{{.Name"))
}

func TestEventCategory(t *testing.T) {
	assert.Equal(t, CategoryFramework, Event{Reason: ReasonWaitTimedOut}.Category())
	assert.Equal(t, CategoryService, Event{Reason: ReasonServiceModified}.Category())
	assert.Equal(t, CategoryBundle, Event{Reason: ReasonBundleUpdated}.Category())
	assert.Equal(t, EventTypeWarning, getEventType(ReasonFrameworkError))
}
