package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"n1core/domain/core"
	"n1core/internal/errors"
)

// Transition names a rule-engine mode change that can be toggled off
type Transition string

const (
	InformToSuggest Transition = "inform_to_suggest"
	SuggestToFlag   Transition = "suggest_to_flag"
	RevertToInform  Transition = "revert_to_inform"
)

// RuleFlags holds the toggles for one rule. Nil fields inherit the global value.
type RuleFlags struct {
	Enabled     *bool               `yaml:"enabled"`
	Transitions map[Transition]bool `yaml:"transitions"`
}

// Flags is the feature-flag document
type Flags struct {
	Transitions map[Transition]bool       `yaml:"transitions"`
	Rules       map[core.RuleID]RuleFlags `yaml:"rules"`
}

// DefaultFlags enables every rule and transition
func DefaultFlags() Flags {
	return Flags{
		Transitions: map[Transition]bool{InformToSuggest: true, SuggestToFlag: true, RevertToInform: true},
		Rules:       map[core.RuleID]RuleFlags{},
	}
}

// ParseFlags decodes a YAML flags document over the defaults
func ParseFlags(data []byte) (Flags, error) {
	f := DefaultFlags()
	var doc Flags
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Flags{}, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse flags: %w", err))
	}
	for k, v := range doc.Transitions {
		f.Transitions[k] = v
	}
	for id, rf := range doc.Rules {
		f.Rules[id] = rf
	}
	return f, nil
}

// FileFlagProvider reads flags from a YAML file on every call, so edits apply to the next run
type FileFlagProvider struct {
	Path string
}

// Flags loads the current flags; a missing path yields the defaults
func (p *FileFlagProvider) Flags(ctx context.Context) (Flags, error) {
	if p == nil || p.Path == "" {
		return DefaultFlags(), nil
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Flags{}, errors.Wrapf(err, "read flags file %s", p.Path)
	}
	return ParseFlags(data)
}

// StaticFlagProvider always returns the same flags
type StaticFlagProvider struct {
	Value Flags
}

// Flags returns the fixed value
func (p StaticFlagProvider) Flags(ctx context.Context) (Flags, error) {
	return p.Value, nil
}

// RunConfig is the immutable configuration pinned at the start of one athlete run.
// It is built once and never re-read mid-run.
type RunConfig struct {
	Analysis Analysis
	RunDate  time.Time
	PinnedAt time.Time
	flags    Flags
}

// NewRunConfig deep-copies flags into a snapshot
func NewRunConfig(a Analysis, f Flags, runDate, now time.Time) RunConfig {
	cp := Flags{
		Transitions: make(map[Transition]bool, len(f.Transitions)),
		Rules:       make(map[core.RuleID]RuleFlags, len(f.Rules)),
	}
	for k, v := range f.Transitions {
		cp.Transitions[k] = v
	}
	for id, rf := range f.Rules {
		c := RuleFlags{}
		if rf.Enabled != nil {
			enabled := *rf.Enabled
			c.Enabled = &enabled
		}
		if rf.Transitions != nil {
			c.Transitions = make(map[Transition]bool, len(rf.Transitions))
			for k, v := range rf.Transitions {
				c.Transitions[k] = v
			}
		}
		cp.Rules[id] = c
	}
	return RunConfig{Analysis: a, RunDate: core.DateOf(runDate), PinnedAt: now, flags: cp}
}

// Fingerprint identifies the pinned analysis settings and flags, so two runs can be
// compared for configuration drift
func (rc RunConfig) Fingerprint() core.Hash {
	parts := []string{fmt.Sprintf("analysis=%+v", rc.Analysis)}
	for t, v := range rc.flags.Transitions {
		parts = append(parts, fmt.Sprintf("transition:%s=%t", t, v))
	}
	for id, rf := range rc.flags.Rules {
		if rf.Enabled != nil {
			parts = append(parts, fmt.Sprintf("rule:%s:enabled=%t", id, *rf.Enabled))
		}
		for t, v := range rf.Transitions {
			parts = append(parts, fmt.Sprintf("rule:%s:%s=%t", id, t, v))
		}
	}
	return core.HashParts(parts...)
}

// RuleEnabled reports whether a rule runs in this snapshot. Unlisted rules are enabled.
func (rc RunConfig) RuleEnabled(id core.RuleID) bool {
	rf, ok := rc.flags.Rules[id]
	if !ok || rf.Enabled == nil {
		return true
	}
	return *rf.Enabled
}

// TransitionEnabled reports whether a mode change is allowed for a rule
func (rc RunConfig) TransitionEnabled(id core.RuleID, t Transition) bool {
	if rf, ok := rc.flags.Rules[id]; ok {
		if v, ok := rf.Transitions[t]; ok {
			return v
		}
	}
	v, ok := rc.flags.Transitions[t]
	return !ok || v
}
