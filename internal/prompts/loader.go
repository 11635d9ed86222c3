// Package prompts holds the model instructions used for scoring, classification and
// reports. Templates live in JSON files embedded at compile time and are rendered with
// the schema and trait catalog of each request.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// parsed prompt files by name
var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// Get retrieves a prompt by filename and key.
// The filename should not include the path (e.g., "scoring.json").
// Returns an error if the file or key is not found.
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	return prompt, nil
}

// MustGet retrieves a prompt by filename and key, panicking if not found.
// Use this for prompts that are required at initialization time.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Format replaces {{.Key}} placeholders with values from data. Unknown placeholders
// are left in place.
func Format(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// loadFile loads and caches a prompt file.
func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if prompts, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return prompts, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()

	return prompts, nil
}

// ClearCache clears the prompt cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}

// List returns the prompt keys of a file, sorted.
func List(filename string) ([]string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(prompts))
	for key := range prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
