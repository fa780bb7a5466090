package tools

import (
	"context"

	"github.com/soyeahso/vyrtuous/internal/domain"
)

type destinationKey struct{}

// WithDestination attaches the destination of the current run to ctx.
func WithDestination(ctx context.Context, dest domain.Destination) context.Context {
	return context.WithValue(ctx, destinationKey{}, dest)
}

// DestinationFrom returns the run destination carried by ctx, if any.
func DestinationFrom(ctx context.Context) (domain.Destination, bool) {
	dest, ok := ctx.Value(destinationKey{}).(domain.Destination)
	return dest, ok && dest.ChannelID != "" && dest.ChatID != ""
}
