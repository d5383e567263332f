package middleware

import "github.com/aretw0/waypoint/pkg/ports"

// Middleware wraps a Serializer to transform snapshots on their way to storage.
type Middleware func(ports.Serializer) ports.Serializer

// Chain applies middlewares so that the first one sees the state first on save.
func Chain(base ports.Serializer, mws ...Middleware) ports.Serializer {
	s := base
	for i := len(mws) - 1; i >= 0; i-- {
		s = mws[i](s)
	}
	return s
}
