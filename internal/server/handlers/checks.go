package handlers

import (
	"context"
	"errors"
)

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f CheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// Pinger is satisfied by *sql.DB and redis clients wrapped to return an error.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingChecker reports a backing store unhealthy when it stops answering pings.
func PingChecker(p Pinger) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if p == nil {
			return errors.New("store not configured")
		}
		return p.PingContext(ctx)
	})
}
