// Package profiles holds the named scoring schemas each endpoint variant validates against.
// Profiles are declared in YAML (or JSON), checked against an embedded JSON Schema and
// then against scoring.TraitSchema's own rules.
package profiles

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/jonathan/trait-scorer/internal/scoring"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Built-in profile names
const (
	FullBody       = "full-body"
	Face           = "face"
	Classification = "classification"
)

//go:embed builtin.yaml
var builtinYAML []byte

//go:embed profile.schema.json
var profileSchemaJSON string

type document struct {
	Profiles []scoring.TraitSchema `yaml:"profiles"`
}

// Parse decodes and checks a profiles document. source names the document in errors.
func Parse(data []byte, source string) ([]scoring.TraitSchema, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, &LoadError{Source: source, Message: "failed to parse YAML", Cause: err}
	}

	if err := checkStructure(generic, source); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Source: source, Message: "failed to decode profiles", Cause: err}
	}

	for i := range doc.Profiles {
		if err := doc.Profiles[i].Check(); err != nil {
			return nil, &LoadError{Source: source, Message: fmt.Sprintf("profile %d is invalid", i), Cause: err}
		}
	}
	return doc.Profiles, nil
}

// checkStructure validates the decoded document against profile.schema.json.
func checkStructure(doc any, source string) error {
	schemaLoader := gojsonschema.NewStringLoader(profileSchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &LoadError{Source: source, Message: "schema validation failed during load", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		details = append(details, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return &LoadError{Source: source, Message: "profiles do not match the expected structure", Details: details}
}

// LoadFile reads and parses a profiles file.
func LoadFile(path string) ([]scoring.TraitSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Message: "failed to read profiles file", Cause: err}
	}
	return Parse(data, path)
}

// Registry is an immutable set of named schemas.
type Registry struct {
	order  []string
	byName map[string]scoring.TraitSchema
}

// NewRegistry builds a registry. Later schemas replace earlier ones with the same name.
func NewRegistry(schemas ...scoring.TraitSchema) (*Registry, error) {
	r := &Registry{byName: make(map[string]scoring.TraitSchema, len(schemas))}
	for _, s := range schemas {
		if err := s.Check(); err != nil {
			return nil, err
		}
		if _, exists := r.byName[s.Name]; !exists {
			r.order = append(r.order, s.Name)
		}
		r.byName[s.Name] = clone(s)
	}
	return r, nil
}

// Builtin returns the registry of bundled profiles. It panics if they are broken,
// which only a bad build can cause.
func Builtin() *Registry {
	schemas, err := Parse(builtinYAML, "builtin.yaml")
	if err != nil {
		panic(fmt.Sprintf("failed to load built-in profiles: %v", err))
	}
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(fmt.Sprintf("failed to load built-in profiles: %v", err))
	}
	return r
}

// Load returns the built-in profiles overlaid with those in path, if path is set.
func Load(path string) (*Registry, error) {
	builtin, err := Parse(builtinYAML, "builtin.yaml")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return NewRegistry(builtin...)
	}

	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(append(builtin, extra...)...)
}

// Get returns a copy of the named schema.
func (r *Registry) Get(name string) (scoring.TraitSchema, bool) {
	s, ok := r.byName[name]
	if !ok {
		return scoring.TraitSchema{}, false
	}
	return clone(s), true
}

// Names returns profile names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns copies of every schema in declaration order.
func (r *Registry) All() []scoring.TraitSchema {
	out := make([]scoring.TraitSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, clone(r.byName[name]))
	}
	return out
}

// Scored returns the names of profiles that score regions, sorted.
func (r *Registry) Scored() []string {
	var names []string
	for name, s := range r.byName {
		if s.Scored() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func clone(s scoring.TraitSchema) scoring.TraitSchema {
	s.Traits = append([]string(nil), s.Traits...)
	s.Regions = append([]string(nil), s.Regions...)
	return s
}
