package domain

import "context"

// Resolver obtains the statutory charge schedule for a bill computation.
// Implementations must be read-only queries.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Result, error)
}
