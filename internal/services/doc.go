// Package services implements the framework service registry.
//
// Bundles publish plain Go values under one or more contract names and look
// them up by contract. There is no reflection involved: the contract name is
// a string the publisher and the consumer agree on, and the consumer type
// asserts the returned value to the interface it expects.
//
// # Ordering
//
// References returns matches best first: the highest service.ranking
// property wins, and among equal rankings the lowest service id (the oldest
// registration) wins.
//
// # Filters
//
// A filter is a property map; a registration matches when it has every key
// with an equal value (values compare by their fmt representation).
//
// # Lifecycle
//
// The framework calls UnregisterAll and ReleaseAll when a bundle stops, so
// services never outlive the bundle that registered them.
//
// Example:
//
//	reg, err := registry.Register(bundleID, []string{"org.acme.Greeter"}, greeter, services.Properties{
//	    services.PropServiceRanking: 10,
//	})
//	ref, ok := registry.Reference("org.acme.Greeter")
//	svc, err := registry.Get(otherBundle, ref)
//	g := svc.(Greeter)
package services
