// Package logging provides slog setup and per-cycle context propagation.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const (
	cycleIDKey   contextKey = "cycleId"
	componentKey contextKey = "component"
)

// NewCycleID creates an 8-character hex id for one sync or notification cycle.
func NewCycleID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// WithCycleID injects a cycle ID into the context.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleID retrieves the cycle ID from the context.
// Returns empty string if not found.
func CycleID(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}

// WithComponent tags every log line written with ctx by the named component.
func WithComponent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, componentKey, name)
}

// Component returns the component name stored in ctx.
func Component(ctx context.Context) string {
	if name, ok := ctx.Value(componentKey).(string); ok {
		return name
	}
	return ""
}

// StartCycle returns ctx tagged with a fresh cycle id and the component name.
func StartCycle(ctx context.Context, component string) context.Context {
	return WithComponent(WithCycleID(ctx, NewCycleID()), component)
}
