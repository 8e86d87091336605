package kri

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTypeWeight applies to threat types missing from the weight table.
const DefaultTypeWeight = 10

// Weights maps threat types to their severity weight.
type Weights struct {
	Default int            `yaml:"default"`
	Types   map[string]int `yaml:"weights"`
}

// DefaultWeights returns the built-in weight table.
func DefaultWeights() Weights {
	return Weights{
		Default: DefaultTypeWeight,
		Types: map[string]int{
			"ransomware-attack":         100,
			"data-exposure-message":     80,
			"infostealer-credential":    70,
			"corporate-credential-leak": 60,
			"malware":                   50,
			"phishing":                  50,
			"fake-mobile-app":           40,
			"data-exposure":             40,
			"dw-activity":               30,
			"fraudulent-brand-use":      20,
			"similar-domain-name":       15,
		},
	}
}

// Of returns the weight of threatType.
func (w Weights) Of(threatType string) int {
	if v, ok := w.Types[threatType]; ok {
		return v
	}
	return w.Default
}

// ParseWeights decodes a YAML weight profile and layers it over the
// built-in table:
//
//	default: 10
//	weights:
//	  phishing: 65
//	  smishing: 45
//
// Types absent from the profile keep their built-in weight.
func ParseWeights(data []byte) (Weights, error) {
	var profile struct {
		Default *int           `yaml:"default"`
		Types   map[string]int `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Weights{}, fmt.Errorf("parse weight profile: %w", err)
	}

	w := DefaultWeights()
	if profile.Default != nil {
		w.Default = *profile.Default
	}
	maps.Copy(w.Types, profile.Types)

	if w.Default < 0 {
		return Weights{}, fmt.Errorf("default weight must not be negative, got %d", w.Default)
	}
	for t, v := range w.Types {
		if v < 0 {
			return Weights{}, fmt.Errorf("weight for %q must not be negative, got %d", t, v)
		}
	}
	return w, nil
}

// LoadWeights reads a weight profile from path. An empty path returns the
// built-in table.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weight profile: %w", err)
	}
	return ParseWeights(data)
}
