// Package traits loads the descriptions of the character traits the model is asked to score.
// Descriptions live in one text file per trait (<name>.txt). Files shipped with the
// binary are used when no directory is configured.
package traits

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed defaults/*.txt
var defaultFiles embed.FS

// Names lists the built-in traits in canonical order.
var Names = []string{"oral", "esquizoide", "masoquista", "psicopata", "rigido"}

// SourceEmbedded is reported by catalogs built from the bundled descriptions.
const SourceEmbedded = "embedded"

// Trait is one named trait and its physical/expressive description.
type Trait struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog is an ordered, read-only set of trait descriptions.
type Catalog struct {
	traits []Trait
	source string
}

// Default returns the bundled descriptions for the given names (Names when empty).
// Names without a bundled file are skipped.
func Default(names ...string) *Catalog {
	if len(names) == 0 {
		names = Names
	}
	c, _ := load(defaultFiles, "defaults", names)
	c.source = SourceEmbedded
	return c
}

// Load reads <name>.txt for each name from dir. Missing files are skipped.
// An empty dir, or a dir holding none of the files, yields the bundled descriptions.
func Load(dir string, names ...string) (*Catalog, error) {
	if len(names) == 0 {
		names = Names
	}
	if dir == "" {
		return Default(names...), nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Dir: dir, Message: "cannot access traits directory", Cause: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Dir: dir, Message: "not a directory"}
	}

	c, err := load(os.DirFS(dir), ".", names)
	if err != nil {
		return nil, &LoadError{Dir: dir, Message: "failed to read trait file", Cause: err}
	}
	if len(c.traits) == 0 {
		return Default(names...), nil
	}
	c.source = dir
	return c, nil
}

func load(fsys fs.FS, root string, names []string) (*Catalog, error) {
	c := &Catalog{}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, name+".txt")))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return c, fmt.Errorf("%s: %w", name, err)
		}
		c.traits = append(c.traits, Trait{Name: name, Description: strings.TrimSpace(string(data))})
	}
	return c, nil
}

// Source is the directory the catalog was read from, or SourceEmbedded.
func (c *Catalog) Source() string {
	return c.source
}

// Traits returns a copy of the catalog entries in order.
func (c *Catalog) Traits() []Trait {
	return append([]Trait(nil), c.traits...)
}

// Get looks up one trait by name.
func (c *Catalog) Get(name string) (Trait, bool) {
	for _, t := range c.traits {
		if t.Name == name {
			return t, true
		}
	}
	return Trait{}, false
}

// Map returns name -> description.
func (c *Catalog) Map() map[string]string {
	m := make(map[string]string, len(c.traits))
	for _, t := range c.traits {
		m[t.Name] = t.Description
	}
	return m
}

// Text renders the catalog as "NAME:\n<description>\n" blocks separated by blank lines.
// When names are given only those traits are rendered, in the given order.
func (c *Catalog) Text(names ...string) string {
	selected := c.traits
	if len(names) > 0 {
		selected = make([]Trait, 0, len(names))
		for _, name := range names {
			if t, ok := c.Get(name); ok {
				selected = append(selected, t)
			}
		}
	}

	blocks := make([]string, 0, len(selected))
	for _, t := range selected {
		blocks = append(blocks, fmt.Sprintf("%s:\n%s\n", strings.ToUpper(t.Name), t.Description))
	}
	return strings.Join(blocks, "\n")
}

// LoadError reports a traits directory that could not be read.
type LoadError struct {
	Dir     string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("traits %s: %s: %v", e.Dir, e.Message, e.Cause)
	}
	return fmt.Sprintf("traits %s: %s", e.Dir, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
