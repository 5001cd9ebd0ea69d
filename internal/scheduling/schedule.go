package scheduling

import (
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"insights-backend/internal/taskqueue"
)

// Task names consumed by the worker pool.
const (
	TaskDailyAnalysis = "analysis.daily"
	TaskQuickScan     = "analysis.quick_scan"
	TaskWeeklyReport  = "report.weekly"
	TaskCleanup       = "maintenance.cleanup"
)

// Definition is one periodic trigger: the "when" as pure data, separate from
// the handler that does the work.
type Definition struct {
	JobID    string `yaml:"job_id"`
	Task     string `yaml:"task"`
	Spec     string `yaml:"spec"`
	Lane     string `yaml:"lane"`
	Priority int    `yaml:"priority"`
	Disabled bool   `yaml:"disabled"`
}

// Defaults returns the built-in schedule: daily full analysis at 2AM, an
// hourly quick scan, the weekly report Monday 9AM, and nightly cleanup.
func Defaults() []Definition {
	return []Definition{
		{JobID: "daily-analysis", Task: TaskDailyAnalysis, Spec: "0 2 * * *", Lane: taskqueue.LaneHigh, Priority: 8},
		{JobID: "hourly-quick-scan", Task: TaskQuickScan, Spec: "0 * * * *", Lane: taskqueue.LaneDefault, Priority: 5},
		{JobID: "weekly-report", Task: TaskWeeklyReport, Spec: "0 9 * * 1", Lane: taskqueue.LaneDefault, Priority: 4},
		{JobID: "nightly-cleanup", Task: TaskCleanup, Spec: "0 3 * * *", Lane: taskqueue.LaneLow, Priority: 1},
	}
}

type scheduleFile struct {
	Schedules []Definition `yaml:"schedules"`
}

// LoadFile overlays definitions from a YAML file onto the defaults. Entries
// match by job id: a file entry replaces its default, unknown ids append,
// disabled entries are removed.
func LoadFile(path string) ([]Definition, error) {
	defs := Defaults()
	if path == "" {
		return defs, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}
	return Merge(defs, data)
}

// Merge overlays YAML schedule data onto base definitions.
func Merge(base []Definition, data []byte) ([]Definition, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}

	byID := make(map[string]int, len(base))
	out := make([]Definition, len(base))
	copy(out, base)
	for i, def := range out {
		byID[def.JobID] = i
	}

	for _, override := range file.Schedules {
		if override.JobID == "" {
			return nil, fmt.Errorf("schedule entry missing job_id")
		}
		if idx, ok := byID[override.JobID]; ok {
			merged := out[idx]
			if override.Spec != "" {
				merged.Spec = override.Spec
			}
			if override.Task != "" {
				merged.Task = override.Task
			}
			if override.Lane != "" {
				merged.Lane = override.Lane
			}
			if override.Priority != 0 {
				merged.Priority = override.Priority
			}
			merged.Disabled = override.Disabled
			out[idx] = merged
		} else {
			if override.Task == "" || override.Spec == "" {
				return nil, fmt.Errorf("schedule entry %q needs task and spec", override.JobID)
			}
			byID[override.JobID] = len(out)
			out = append(out, override)
		}
	}

	kept := out[:0]
	for _, def := range out {
		if !def.Disabled {
			kept = append(kept, def)
		}
	}
	return kept, nil
}

// Validate checks every definition parses as a cron spec.
func Validate(defs []Definition) error {
	for _, def := range defs {
		if _, err := cron.ParseStandard(def.Spec); err != nil {
			return fmt.Errorf("schedule %q: %w", def.JobID, err)
		}
	}
	return nil
}
