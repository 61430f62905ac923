package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/stocklens/stocklens/internal/llm"
)

// Tool is one declared function the model may call. Arguments arrive as
// raw JSON, are decoded into the typed struct NewArgs returns, and are
// validated against its tags before Run executes. The Parameters schema is
// what the model sees; the validate tags are what we enforce.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	NewArgs     func() any
	Run         func(ctx context.Context, args any) (string, error)
}

// Registry maps tool names to typed handlers. Dispatch never panics on
// model-supplied input: unknown names, malformed JSON, and out-of-range
// arguments all come back as errors the loop feeds to the model as TOOL
// turns.
type Registry struct {
	tools    map[string]Tool
	names    []string
	validate *validator.Validate
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	if tool.NewArgs == nil || tool.Run == nil {
		return fmt.Errorf("tool %q missing args factory or handler", tool.Name)
	}
	r.tools[tool.Name] = tool
	r.names = append(r.names, tool.Name)
	return nil
}

// Definitions returns the declared tool set in registration order, in the
// wire format the model expects.
func (r *Registry) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(r.names))
	for _, name := range r.names {
		tool := r.tools[name]
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return defs
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.names...)
	sort.Strings(names)
	return names
}

// Dispatch validates the raw arguments against the named tool's schema and
// executes it. Validation failures are returned without invoking the tool.
func (r *Registry) Dispatch(ctx context.Context, name string, rawArgs string) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q, available tools: %v", name, r.Names())
	}

	args := tool.NewArgs()
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), args); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}
	if err := r.validate.Struct(args); err != nil {
		return "", fmt.Errorf("argument validation failed for %s: %w", name, err)
	}

	return tool.Run(ctx, args)
}
