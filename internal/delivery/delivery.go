// Package delivery defines the contract every transport-facing server
// (HTTP, background workers) fulfills so main can start them uniformly.
package delivery

import "context"

// Delivery is one serving surface. Serve blocks until the server stops or the
// context is cancelled; shutdown happens through fx lifecycle hooks.
type Delivery interface {
	Serve(ctx context.Context) error
}
