package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/poller"
	"gopkg.in/yaml.v3"
)

// Tuning is the optional YAML file overriding poll cadences:
//
//	poll:
//	  live: 2s
//	  history: 10s
//	  policies: 5s
type Tuning struct {
	Poll struct {
		Live     time.Duration `yaml:"live"`
		History  time.Duration `yaml:"history"`
		Policies time.Duration `yaml:"policies"`
	} `yaml:"poll"`
}

// LoadTuning reads and validates a tuning file
func LoadTuning(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}

	for name, d := range map[string]time.Duration{
		"live":     t.Poll.Live,
		"history":  t.Poll.History,
		"policies": t.Poll.Policies,
	} {
		if d < 0 {
			return nil, fmt.Errorf("tuning file %s: poll.%s must not be negative", path, name)
		}
	}
	return &t, nil
}

// apply overrides every cadence set in the file
func (t *Tuning) apply(iv *poller.Intervals) {
	if t.Poll.Live > 0 {
		iv.Live = t.Poll.Live
	}
	if t.Poll.History > 0 {
		iv.History = t.Poll.History
	}
	if t.Poll.Policies > 0 {
		iv.Policies = t.Poll.Policies
	}
}
