// Package config holds process configuration that is data, not wiring: the
// language-to-script table used when building transcription prompts.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultScripts covers the languages the collection pipeline has shipped
// with. Anything unknown falls back to Latin.
var defaultScripts = map[string]string{
	"Gujarati":  "Gujarati",
	"Telugu":    "Telugu",
	"Hindi":     "Devanagari",
	"Marathi":   "Devanagari",
	"Tamil":     "Tamil",
	"Kannada":   "Kannada",
	"Malayalam": "Malayalam",
	"Bengali":   "Bengali",
	"Punjabi":   "Gurmukhi",
	"Odia":      "Odia",
	"English":   "Latin",
}

// Scripts resolves source languages to the script name the backend should
// transcribe in.
type Scripts struct {
	byLanguage map[string]string
}

// DefaultScripts returns the built-in table.
func DefaultScripts() Scripts {
	return Scripts{byLanguage: defaultScripts}
}

// LoadScripts reads a YAML mapping of language name to script name and merges
// it over the built-in table, so deployments can add languages without a
// rebuild.
func LoadScripts(path string) (Scripts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scripts{}, fmt.Errorf("read scripts file: %w", err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(b, &overrides); err != nil {
		return Scripts{}, fmt.Errorf("parse scripts file %s: %w", path, err)
	}
	merged := make(map[string]string, len(defaultScripts)+len(overrides))
	for k, v := range defaultScripts {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return Scripts{byLanguage: merged}, nil
}

// Lookup returns the script for a language, defaulting to Latin.
func (s Scripts) Lookup(language string) string {
	if script, ok := s.byLanguage[language]; ok {
		return script
	}
	return "Latin"
}
