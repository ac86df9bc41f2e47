package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to DBPinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker checks availability of a dependency (knowledge base, classifier).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
