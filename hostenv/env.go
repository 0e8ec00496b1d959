// Package hostenv provides the reference driver's standalone Host
// implementation: a dict tree loaded from a JSON file (validated against a
// fixed schema before use) plus simple stdout/stderr plumbing for exec,
// error, fatal and M112 notifications.
//
// It exists for cmd/gcodec and for tests that want a host without writing
// one by hand; production integrations are expected to implement host.Host
// directly against their own parameter store.
package hostenv

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lauckhart/klipper/host"
)

// envSchema constrains the shape of a loaded environment file: the root
// must be a JSON object. The values inside it are not constrained; Lookup
// turns objects into dicts, strings, numbers and booleans into the
// matching Value kinds, and anything else (arrays, null) into its fmt
// string form. It intentionally doesn't bound
// nesting depth the way the teacher's parameter-schema validator does --
// an environment file is operator-authored, not attacker-supplied.
const envSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object"
}`

// Env is a JSON-backed host.Host: lookups walk the loaded object tree,
// and dict handles are the map[string]any objects decoded from the JSON.
type Env struct {
	root map[string]any

	// Out receives (command, fields[]) tuples from Exec, one field per
	// line, matching the reference driver's documented stdout behavior.
	Out io.Writer
	// ErrOut receives Error/Fatal/M112 notifications.
	ErrOut io.Writer

	execLog []ExecEntry
}

// ExecEntry records one dispatched statement, kept for callers (tests, for
// instance) that want to inspect what ran without re-parsing stdout.
type ExecEntry struct {
	Command string
	Fields  []string
}

// Option configures an Env at construction.
type Option func(*Env)

// WithOutput overrides the stdout/stderr writers (default os.Stdout /
// os.Stderr).
func WithOutput(out, errOut io.Writer) Option {
	return func(e *Env) {
		e.Out = out
		e.ErrOut = errOut
	}
}

// New creates an empty Env -- Lookup always fails until Load populates it.
func New(opts ...Option) *Env {
	e := &Env{
		root:   map[string]any{},
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load replaces the environment's root dict with data, after validating it
// against envSchema. data must be a JSON object at the top level.
func (e *Env) Load(data []byte) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "schema://gcodec-env.json"
	if err := compiler.AddResource(url, strings.NewReader(envSchema)); err != nil {
		return fmt.Errorf("hostenv: compiling schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("hostenv: compiling schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("hostenv: parsing environment: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("hostenv: environment failed validation: %w", err)
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("hostenv: environment root must be an object")
	}
	e.root = root
	return nil
}

// LoadFile reads and loads an environment file.
func (e *Env) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("hostenv: reading %s: %w", path, err)
	}
	return e.Load(data)
}

// Lookup implements host.Host. A nil parent resolves key against the root
// dict; otherwise parent must be a Dict handle produced by a previous
// Lookup (a map[string]any).
func (e *Env) Lookup(key string, parent *host.Value) (host.Value, bool) {
	dict := e.root
	if parent != nil {
		m, ok := parent.Dict.(map[string]any)
		if !ok {
			return host.Value{}, false
		}
		dict = m
	}
	raw, ok := dict[key]
	if !ok {
		return host.Value{}, false
	}
	return fromJSON(raw), true
}

func fromJSON(raw any) host.Value {
	switch v := raw.(type) {
	case string:
		return host.Str(v)
	case bool:
		return host.Bool(v)
	case float64:
		if v == float64(int64(v)) {
			return host.Int(int64(v))
		}
		return host.Float(v)
	case map[string]any:
		return host.Dict(v)
	default:
		return host.Str(fmt.Sprintf("%v", v))
	}
}

// Serialize implements host.Host by rendering a Dict handle as compact
// JSON.
func (e *Env) Serialize(handle any) (string, bool) {
	b, err := json.Marshal(handle)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Exec implements host.Host: it writes command and fields to Out, one per
// line, and records the call for later inspection.
func (e *Env) Exec(command string, fields []string) bool {
	e.execLog = append(e.execLog, ExecEntry{Command: command, Fields: fields})
	fmt.Fprintln(e.Out, command)
	for _, f := range fields {
		fmt.Fprintln(e.Out, f)
	}
	return true
}

// ExecLog returns every statement Exec has been called with so far.
func (e *Env) ExecLog() []ExecEntry { return e.execLog }

// Error implements host.Host.
func (e *Env) Error(msg string) { fmt.Fprintln(e.ErrOut, "error:", msg) }

// Fatal implements host.Host.
func (e *Env) Fatal(msg string) { fmt.Fprintln(e.ErrOut, "fatal:", msg) }

// M112 implements host.Host.
func (e *Env) M112() { fmt.Fprintln(e.ErrOut, "*** EMERGENCY STOP (M112) ***") }
