// Package tools holds the registry the agent loop dispatches function calls
// through. Arguments are validated against a generated JSON Schema before
// the handler runs, and no handler failure escapes the dispatch boundary as
// anything other than a failed Result.
package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hoangnp/careerpilot/internal/observability"
	"github.com/hoangnp/careerpilot/pkg/genai"
)

// Parameter defines a parameter for a tool
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for tool execution
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Definition defines a tool's metadata and handler
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Result is the outcome of one dispatch. Success or not, it always carries
// the tool name and a timestamp.
type Result struct {
	ToolName  string      `json:"tool_name"`
	Success   bool        `json:"success"`
	Output    interface{} `json:"output,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AsResponse renders the result as the map handed back to the model.
func (r Result) AsResponse() map[string]interface{} {
	if r.Success {
		return map[string]interface{}{"result": r.Output}
	}
	return map[string]interface{}{"error": r.Error}
}

// Registry manages tool definitions and their compiled schemas.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	inputs  map[string]map[string]interface{}
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		inputs:  make(map[string]map[string]interface{}),
	}
}

// Register adds a tool. The definition is validated and its JSON Schema
// compiled up front so dispatch never has to.
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schemaMap := buildSchemaMap(def)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema
	r.inputs[def.Name] = schemaMap
	r.order = append(r.order, def.Name)

	log.Info().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// Get returns a tool definition by name, or nil.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns registered tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Declarations returns the model-visible tool declarations in registration
// order.
func (r *Registry) Declarations() []genai.ToolDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]genai.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name]
		decls = append(decls, genai.ToolDeclaration{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: r.inputs[name],
		})
	}
	return decls
}

// Dispatch runs the named tool. Unknown names, invalid arguments, handler
// errors, and handler panics all come back as a failed Result; the loop
// keeps running regardless of what a tool does.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}) (result Result) {
	start := time.Now()
	result = Result{ToolName: name, Timestamp: start}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", name).Interface("panic", rec).Msg("Tool handler panicked")
			result.Success = false
			result.Output = nil
			result.Error = fmt.Sprintf("tool panicked: %v", rec)
		}
		observability.RecordToolExecution(name, time.Since(start), result.Success)
	}()

	r.mu.RLock()
	def := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if def == nil {
		log.Warn().Str("tool", name).Msg("Tool not found")
		result.Error = fmt.Sprintf("tool not found: %s", name)
		return result
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validateArgs(schema, args); err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Argument validation failed")
		result.Error = fmt.Sprintf("argument validation failed: %v", err)
		return result
	}

	log.Debug().Str("tool", name).Msg("Executing tool")

	output, err := def.Handler(ctx, args)
	if err != nil {
		log.Error().Str("tool", name).Err(err).Msg("Tool execution failed")
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Output = output
	return result
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
	}

	return nil
}

func buildSchemaMap(def Definition) map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}
	return schemaMap
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := []string{}
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}
