// Package command routes decoded command invocations to handlers.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mattjoyce/slashgate/internal/interaction"
	"github.com/mattjoyce/slashgate/internal/log"
)

const (
	// FallbackContent answers commands that have no registered handler.
	FallbackContent = "unrecognized command"

	failureContent = "Something went wrong running that command."
)

// Request is what a handler receives.
type Request struct {
	Name      string
	Arguments map[string]any
	Invoker   interaction.Invoker
}

// HandlerFunc answers a command. Handlers own their side effects: a failing
// collaborator must be turned into a best-effort response, never returned.
type HandlerFunc func(ctx context.Context, req Request) interaction.Response

// Command is a routing table entry.
type Command struct {
	Name        string
	Description string
	// Schema is an optional JSON Schema for the flattened arguments. When set,
	// arguments are validated before the handler runs.
	Schema  string
	Handler HandlerFunc
}

type route struct {
	cmd    Command
	schema *jsonschema.Schema
}

// Router is an immutable name -> handler table. Lookups are exact and
// case-sensitive. Safe for concurrent use.
type Router struct {
	routes map[string]route
	logger *slog.Logger
}

// NewRouter builds the routing table. Duplicate names, empty names, missing
// handlers and schemas that do not compile are rejected.
func NewRouter(logger *slog.Logger, cmds ...Command) (*Router, error) {
	routes := make(map[string]route, len(cmds))
	for _, c := range cmds {
		if c.Name == "" {
			return nil, fmt.Errorf("command name is empty")
		}
		if c.Handler == nil {
			return nil, fmt.Errorf("command %q: handler is nil", c.Name)
		}
		if _, dup := routes[c.Name]; dup {
			return nil, fmt.Errorf("command %q registered twice", c.Name)
		}

		rt := route{cmd: c}
		if strings.TrimSpace(c.Schema) != "" {
			compiled, err := compileSchema(c.Name, c.Schema)
			if err != nil {
				return nil, err
			}
			rt.schema = compiled
		}
		routes[c.Name] = rt
	}

	return &Router{routes: routes, logger: logger}, nil
}

func compileSchema(name, schema string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://slashgate.schemas.local/commands/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("command %q: schema load failed: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("command %q: schema compile failed: %w", name, err)
	}
	return compiled, nil
}

// Names returns the registered command names, sorted.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Router) Has(name string) bool {
	_, ok := r.routes[name]
	return ok
}

// Route runs the handler registered for name. It always returns a response:
// unknown commands get the fallback message, invalid arguments and handler
// panics get an ephemeral error message.
func (r *Router) Route(ctx context.Context, name string, args map[string]any, inv interaction.Invoker) (resp interaction.Response) {
	rt, ok := r.routes[name]
	if !ok {
		r.logger.Debug("no handler registered", "command", name)
		return interaction.Message{Content: FallbackContent}
	}
	logger := log.WithCommand(r.logger, name)
	if args == nil {
		args = map[string]any{}
	}

	if rt.schema != nil {
		if err := rt.schema.Validate(args); err != nil {
			logger.Info("command arguments rejected", "error", err)
			return interaction.Message{Content: "invalid arguments: " + validationMessage(err), Ephemeral: true}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("command handler panicked", "panic", rec)
			resp = interaction.Message{Content: failureContent, Ephemeral: true}
		}
	}()

	resp = rt.cmd.Handler(ctx, Request{Name: name, Arguments: args, Invoker: inv})
	if resp == nil {
		logger.Error("command handler returned no response")
		return interaction.Message{Content: failureContent, Ephemeral: true}
	}
	return resp
}

// validationMessage picks the innermost cause, which names the offending field.
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return ve.InstanceLocation + ": " + ve.Message
}
