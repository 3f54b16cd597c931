// Package events delivers framework, bundle and service events to listeners.
//
// The framework calls the Dispatcher on every lifecycle transition, on every
// resolution failure found during a batch, and when a refresh completes.
// Delivery is fire-and-forget: listener panics are recovered and logged, and
// nothing a listener does can fail the operation that fired the event.
//
// Two delivery styles are supported:
//
//   - Listeners registered with AddListener are called synchronously, in
//     registration order, and are owned by a bundle. Stopping the bundle
//     removes them with RemoveListeners.
//   - Channels registered with Subscribe receive a copy of every event
//     without blocking; a full channel drops the event.
//
// Messages are rendered from per-reason templates by the
// MessageTemplateEngine, which uses text/template with the sprig function map.
//
//	d := events.NewDispatcher()
//	d.AddListener(bundleID, events.CategoryBundle, func(e events.Event) {
//		fmt.Println(e.Message)
//	})
//	d.Fire(events.Event{Reason: events.ReasonBundleInstalled, Bundle: 3, SymbolicName: "org.acme"})
package events
