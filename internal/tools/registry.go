// Package tools holds the operation registry exposed to agents and the Autoform
// tools, resources and prompts registered on it.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"autoform-mcp/internal/autoform"
)

// ErrUnknownTool is returned by Invoke for a name that was never registered.
var ErrUnknownTool = errors.New("unknown tool")

// Validator is implemented by tool inputs with constraints beyond their schema.
type Validator interface {
	Validate() error
}

// Metrics observes tool invocations. outcome is "ok" or an autoform error kind.
type Metrics interface {
	ObserveTool(tool string, outcome string, duration time.Duration)
}

// Handler runs one invocation with already-parsed JSON arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is a named operation with its declared input and output shapes.
type Tool struct {
	Name         string
	Description  string
	InputSchema  *jsonschema.Schema
	OutputSchema *jsonschema.Schema
	Handler      Handler
}

// Registry maps operation names to tools. It is filled at process start and only
// read afterwards, so Register must not race with Invoke.
type Registry struct {
	tools   map[string]Tool
	order   []string
	logger  *zap.Logger
	metrics Metrics
}

// NewRegistry returns an empty registry logging under logger. metrics may be nil.
func NewRegistry(logger *zap.Logger, metrics Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:   make(map[string]Tool),
		logger:  logger.Named("tools"),
		metrics: metrics,
	}
}

// Register adds t. Names must be unique and non-empty.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Invoke runs the named tool with args.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	out, err := t.Handler(ctx, args)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		info := autoform.Describe(err)
		outcome = info.Kind
		r.logger.Warn("tool call failed",
			zap.String("tool", name),
			zap.String("kind", info.Kind),
			zap.Int("status", info.Status),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	} else {
		r.logger.Debug("tool call", zap.String("tool", name), zap.Duration("elapsed", elapsed))
	}
	if r.metrics != nil {
		r.metrics.ObserveTool(name, outcome, elapsed)
	}
	return out, err
}

// NewTool builds a Tool around a typed function. Schemas are inferred from In and
// Out; arguments are checked against the required keys, decoded by json tag name
// and validated before fn runs, so a bad call never reaches fn.
func NewTool[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) (Tool, error) {
	inSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return Tool{}, fmt.Errorf("input schema for %s: %w", name, err)
	}
	outSchema, err := jsonschema.For[Out](nil)
	if err != nil {
		return Tool{}, fmt.Errorf("output schema for %s: %w", name, err)
	}
	return Tool{
		Name:         name,
		Description:  description,
		InputSchema:  inSchema,
		OutputSchema: outSchema,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			in, err := decodeArgs[In](inSchema, args)
			if err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}, nil
}

func decodeArgs[In any](schema *jsonschema.Schema, args map[string]any) (In, error) {
	var in In
	for _, key := range schema.Required {
		if v, ok := args[key]; !ok || v == nil {
			return in, &autoform.ValidationError{Field: key, Message: "is required"}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		MatchName:   func(mapKey, fieldName string) bool { return mapKey == fieldName },
		DecodeHook:  wholeNumberHook,
		Result:      &in,
	})
	if err != nil {
		return in, err
	}
	if err := dec.Decode(args); err != nil {
		return in, &autoform.ValidationError{Message: err.Error()}
	}

	if v, ok := any(in).(Validator); ok {
		if err := v.Validate(); err != nil {
			return in, err
		}
	}
	return in, nil
}

// wholeNumberHook rejects JSON numbers with a fraction aimed at integer fields;
// mapstructure would otherwise truncate them.
func wholeNumberHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	if f != math.Trunc(f) {
		return nil, &autoform.ValidationError{Message: fmt.Sprintf("expected an integer, got %v", f)}
	}
	return data, nil
}
