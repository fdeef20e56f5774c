// Package tools defines the worker-side tool registry: named,
// schema-described actions a worker publishes over tools/list and
// performs on tools/call.
//
// Includes:
//   - Definition: name, description, JSON input schema, handler.
//   - Registry: the mcp.ToolSet consulted by the worker's dispatcher.
//   - GenerateSchema[T](): derive a JSON input schema from a Go struct.
//   - Shipped tools: weather alerts/forecast, document search,
//     read_file and execute_command.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/invopop/jsonschema"
	"github.com/toolwire/toolwire/errors"
	"github.com/toolwire/toolwire/mcp"
)

// Handler performs one tool invocation. Arguments arrive as the raw
// JSON the caller supplied; the result is a list of typed content
// blocks returned to the controller untouched.
type Handler func(ctx context.Context, args json.RawMessage) ([]mcp.Content, error)

// Definition declares one tool: its registry-unique name, the
// description and input schema published to the controller, and the
// handler that does the work.
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Registry maps tool names to definitions. It satisfies mcp.ToolSet.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

// NewRegistry builds a registry with the given definitions registered
// in order.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	for _, d := range defs {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a definition. Listing order is registration
// order; re-registering keeps the original position.
func (r *Registry) Register(d Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.defs[d.Name] = d
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Descriptors returns the published tool descriptors in registration
// order.
func (r *Registry) Descriptors() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		d := r.defs[name]
		out = append(out, mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Call invokes the named tool with the supplied arguments. An
// unregistered name yields mcp.ErrToolNotFound.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) ([]mcp.Content, error) {
	d, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mcp.ErrToolNotFound, name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize arguments for '%s'", name)
	}
	return d.Handler(ctx, raw)
}

// GenerateSchema derives the JSON input schema for a tool's argument
// struct. Field descriptions come from jsonschema_description tags.
func GenerateSchema[T any]() json.RawMessage {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = "" // workers publish a bare object schema
	raw, err := json.Marshal(schema)
	if err != nil {
		// Reflect output is always marshalable; reaching here means the
		// argument struct itself is broken.
		panic(fmt.Sprintf("tools: failed to marshal schema: %v", err))
	}
	return raw
}

// textResult wraps a single text block, the common case for the
// shipped tools.
func textResult(s string) []mcp.Content {
	return []mcp.Content{mcp.NewTextContent(s)}
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// isCommandAllowed checks if a command is in the allowlist (with regex
// support).
func isCommandAllowed(command string, allowed []string) (bool, error) {
	cmdParts := strings.Fields(command)
	if len(cmdParts) == 0 {
		return false, nil
	}

	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			// Fall back to literal comparison for an invalid pattern.
			if command == pattern {
				return true, nil
			}
			continue
		}
		if re.MatchString(command) {
			return true, nil
		}
	}
	return false, nil
}
