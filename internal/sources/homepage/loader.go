package homepage

import (
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrTooLarge is returned when an upload exceeds the loader's limit.
var ErrTooLarge = errors.New("bookmarks file too large")

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// Loader reads Homepage bookmarks.yaml documents
type Loader struct {
	maxBytes int64
}

// NewLoader creates a loader that refuses documents over maxBytes.
// A non-positive maxBytes means no limit.
func NewLoader(maxBytes int64) *Loader {
	return &Loader{maxBytes: maxBytes}
}

// MaxBytes is the upload limit, 0 when unlimited.
func (l *Loader) MaxBytes() int64 {
	if l.maxBytes < 0 {
		return 0
	}
	return l.maxBytes
}

// Load reads and parses a bookmarks.yaml document
func (l *Loader) Load(r io.Reader) (BookmarksConfig, error) {
	if l.maxBytes > 0 {
		r = io.LimitReader(r, l.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks file: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, ErrTooLarge
	}
	return Parse(data)
}

// Parse parses bookmarks.yaml content
func Parse(data []byte) (BookmarksConfig, error) {
	// Strip Homepage template variables ({{HOMEPAGE_VAR_...}})
	data = stripTemplateVariables(data)

	var config BookmarksConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}

	return config, nil
}

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_USER}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
