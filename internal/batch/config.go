package batch

import (
	"fmt"
	"os"

	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

// Entry is one scheduled regression
type Entry struct {
	Name              string   `toml:"name"`
	Cron              string   `toml:"cron"`
	Project           string   `toml:"project"`
	Kind              string   `toml:"kind"`
	// Timeout is in minutes; unset means the CLI default, 0 is kept like --timeout 0
	Timeout           *int     `toml:"timeout"`
	NamePattern       string   `toml:"name_pattern"`
	SkipBuild         bool     `toml:"skip_build"`
	AndTags           []string `toml:"and_tags"`
	OrTags            []string `toml:"or_tags"`
	NotTags           []string `toml:"not_tags"`
	PublishDir        string   `toml:"publish_dir"`
	SyndromeDir       string   `toml:"syndrome_dir"`
	WebDir            string   `toml:"web_dir"`
	LSFCommand        string   `toml:"lsf_cmd"`
	PlotlyPython      string   `toml:"plotly_py_path"`
	LevenshteinPython string   `toml:"levenshtein_py_path"`
}

// ScheduleConfig holds all scheduled regressions
type ScheduleConfig struct {
	Entries []Entry `toml:"regression"`
}

// Validate checks the entry, including the request it fires
func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("regression name is required")
	}
	if e.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(e.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if e.Project == "" {
		return fmt.Errorf("project is required")
	}
	if _, err := domain.ParseKind(e.Kind); err != nil {
		return err
	}
	return e.Request(0).Validate()
}

// Request builds the regression request for one firing of the entry
func (e Entry) Request(seed int64) domain.Request {
	timeout := domain.DefaultTimeout
	if e.Timeout != nil {
		timeout = *e.Timeout
	}
	return domain.Request{
		Project:           e.Project,
		Kind:              domain.Kind(e.Kind),
		Timeout:           timeout,
		NamePattern:       e.NamePattern,
		SkipBuild:         e.SkipBuild,
		AndTags:           e.AndTags,
		OrTags:            e.OrTags,
		NotTags:           e.NotTags,
		Seed:              seed,
		PublishDir:        e.PublishDir,
		SyndromeDir:       e.SyndromeDir,
		WebDir:            e.WebDir,
		LSFCommand:        e.LSFCommand,
		PlotlyPython:      e.PlotlyPython,
		LevenshteinPython: e.LevenshteinPython,
	}
}

// LoadScheduleConfig loads scheduled regressions from a TOML file
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleConfig{}, nil
		}
		return nil, err
	}

	var cfg ScheduleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for i := range cfg.Entries {
		if err := cfg.Entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("regression %d: %w", i, err)
		}
		if seen[cfg.Entries[i].Name] {
			return nil, fmt.Errorf("regression %d: duplicate name %q", i, cfg.Entries[i].Name)
		}
		seen[cfg.Entries[i].Name] = true
	}

	return &cfg, nil
}
