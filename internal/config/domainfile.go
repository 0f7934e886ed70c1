package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DomainFile is the YAML-owned part of the pipeline configuration: which
// signal domains run, which recurring events exist, which targets are
// covered, and how logical target ids are aliased. Injected at construction
// time so coverage changes never require a redeploy.
type DomainFile struct {
	Domains []SignalDomain `yaml:"domains"`
	Events  []CalendarEvent `yaml:"events"`

	// CoveredTargets limits publication to the listed canonical targets.
	// Empty means every resolvable target is covered.
	CoveredTargets []string `yaml:"covered_targets"`

	// AliasPrefix is the documented regional prefix tried by the target
	// resolver when a verbatim lookup misses (e.g. "bk-").
	AliasPrefix string `yaml:"alias_prefix"`
}

// SignalDomain configures one clustering job (complaints, permits, licenses).
type SignalDomain struct {
	Name            string `yaml:"name"`
	Dataset         string `yaml:"dataset"` // ingestion source dataset id
	WindowDays      int    `yaml:"window_days"`
	FetchLimit      int    `yaml:"fetch_limit"`
	Threshold       int    `yaml:"threshold"`
	BaselineWindows int    `yaml:"baseline_windows"`
	DefaultCategory string `yaml:"default_category"`
	CategoryLabel   string `yaml:"category_label"`
}

// CalendarEvent configures one recurring dated event (fairs, design weeks).
type CalendarEvent struct {
	Name         string   `yaml:"name"`
	Month        int      `yaml:"month"`
	Week         int      `yaml:"week"`
	DurationDays int      `yaml:"duration_days"`
	Targets      []string `yaml:"targets"`
	Category     string   `yaml:"category"`
	Description  string   `yaml:"description"`
}

// LoadDomainFile reads and validates the YAML domain file.
func LoadDomainFile(path string) (*DomainFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain config: %w", err)
	}
	var df DomainFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse domain config: %w", err)
	}
	if err := df.Validate(); err != nil {
		return nil, fmt.Errorf("domain config %s: %w", path, err)
	}
	return &df, nil
}

// Validate applies defaults and rejects unusable entries.
func (df *DomainFile) Validate() error {
	if len(df.Domains) == 0 && len(df.Events) == 0 {
		return fmt.Errorf("no domains or events configured")
	}
	seen := make(map[string]bool)
	for i := range df.Domains {
		d := &df.Domains[i]
		if d.Name == "" {
			return fmt.Errorf("domain %d: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("domain %q: duplicate name", d.Name)
		}
		seen[d.Name] = true
		if d.Dataset == "" {
			return fmt.Errorf("domain %q: dataset is required", d.Name)
		}
		if d.WindowDays <= 0 {
			d.WindowDays = 1
		}
		if d.FetchLimit <= 0 {
			d.FetchLimit = 2000
		}
		if d.Threshold <= 0 {
			d.Threshold = 5
		}
		if d.BaselineWindows <= 0 {
			d.BaselineWindows = 4
		}
	}
	for i, ev := range df.Events {
		if ev.Name == "" {
			return fmt.Errorf("event %d: name is required", i)
		}
		if ev.Month < 1 || ev.Month > 12 {
			return fmt.Errorf("event %q: month %d out of range", ev.Name, ev.Month)
		}
		if ev.Week < 1 || ev.Week > 4 {
			return fmt.Errorf("event %q: week %d out of range", ev.Name, ev.Week)
		}
		if ev.DurationDays < 1 {
			return fmt.Errorf("event %q: duration_days is required", ev.Name)
		}
		if len(ev.Targets) == 0 {
			return fmt.Errorf("event %q: at least one target is required", ev.Name)
		}
	}
	return nil
}

// Window returns the domain's ingestion window length.
func (d SignalDomain) Window() time.Duration {
	return time.Duration(d.WindowDays) * 24 * time.Hour
}
