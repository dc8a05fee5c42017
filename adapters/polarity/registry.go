// Package polarity loads the externally maintained "which way is better" registry
// for output metrics. Metrics not listed stay unknown and get neutral wording.
package polarity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"n1core/domain/signal"
	"n1core/internal/errors"
)

// Registry implements ports.PolarityRegistry from a static map
type Registry struct {
	metrics map[signal.Name]signal.Polarity
}

type document struct {
	Metrics map[string]string `yaml:"metrics"`
}

// New builds a registry from an in-memory map
func New(m map[signal.Name]signal.Polarity) *Registry {
	cp := make(map[signal.Name]signal.Polarity, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &Registry{metrics: cp}
}

// Parse decodes a YAML registry document. Unknown polarity values are rejected.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse polarity registry: %w", err))
	}
	m := make(map[signal.Name]signal.Polarity, len(doc.Metrics))
	for name, value := range doc.Metrics {
		p := signal.Polarity(value)
		switch p {
		case signal.PolarityHigherBetter, signal.PolarityLowerBetter, signal.PolarityAmbiguous:
		default:
			return nil, errors.ConfigInvalid(fmt.Sprintf("metric %s: unknown polarity %q", name, value))
		}
		m[signal.Name(name)] = p
	}
	return &Registry{metrics: m}, nil
}

// Load reads the registry file. An empty path yields an empty registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read polarity file %s", path)
	}
	return Parse(data)
}

// Polarity returns the registered polarity or signal.PolarityUnknown
func (r *Registry) Polarity(metric signal.Name) signal.Polarity {
	if r == nil {
		return signal.PolarityUnknown
	}
	return r.metrics[metric]
}

// Len returns the number of registered metrics
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.metrics)
}
