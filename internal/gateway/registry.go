package gateway

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrUnknownComponent is returned when no registered pattern matches a
// custom ID.
var ErrUnknownComponent = errors.New("unknown component")

// ComponentHandler handles a component press or modal submit. match holds
// the named capture groups of the pattern that matched the custom ID.
type ComponentHandler func(ctx context.Context, ic *Interaction, match map[string]string) error

type registeredComponent struct {
	pattern *regexp.Regexp
	handler ComponentHandler
}

// Registry dispatches interactions by custom ID. A control's persisted
// identity is its custom ID alone, so any control rendered before a restart
// still routes to a live handler afterwards.
type Registry struct {
	components []registeredComponent
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register compiles pattern anchored at both ends and adds it to the
// dispatch table. Patterns are tried in registration order.
func (r *Registry) Register(pattern string, handler ComponentHandler) error {
	compiled, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return fmt.Errorf("compile component pattern %q: %w", pattern, err)
	}
	r.components = append(r.components, registeredComponent{pattern: compiled, handler: handler})
	return nil
}

// Dispatch routes customID to the first matching handler.
func (r *Registry) Dispatch(ctx context.Context, customID string, ic *Interaction) error {
	for _, entry := range r.components {
		groups := entry.pattern.FindStringSubmatch(customID)
		if groups == nil {
			continue
		}
		match := make(map[string]string)
		for i, name := range entry.pattern.SubexpNames() {
			if i > 0 && name != "" {
				match[name] = groups[i]
			}
		}
		return entry.handler(ctx, ic, match)
	}
	return fmt.Errorf("%w: %s", ErrUnknownComponent, customID)
}
