// Package plugin manages the background components that run beside the
// chat surfaces, such as the log-tail trigger and the event publisher.
package plugin

import (
	"context"

	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// Plugin is a background component with a start/stop lifecycle.
type Plugin interface {
	// ID returns a unique identifier for the plugin (e.g., "tail").
	ID() string

	// Start launches the plugin. It must not block past setup; long-running
	// work belongs on a goroutine bound to ctx.
	Start(ctx context.Context, api API) error

	// Stop shuts the plugin down and waits for its goroutines.
	Stop(ctx context.Context) error
}

// API is what a plugin receives at start.
type API struct {
	Hooks *hooks.Manager
	Log   *logging.Logger
}
