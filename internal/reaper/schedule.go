package reaper

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/weaver-ai/weaver/internal/config"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// schedule is a parsed sweep cadence: either a robfig/cron/v3 expression or
// a fixed interval. Cron takes precedence when both are configured.
type schedule struct {
	kind     string // "cron" | "interval"
	cronExpr string
	interval time.Duration
}

// newSchedule parses a reaper config into a schedule.
func newSchedule(cfg config.ReaperConfig) (schedule, error) {
	if expr := strings.TrimSpace(cfg.Cron); expr != "" {
		if _, err := cronParser.Parse(expr); err != nil {
			return schedule{}, fmt.Errorf("invalid reaper cron expression: %w", err)
		}
		return schedule{kind: "cron", cronExpr: expr}, nil
	}
	if cfg.Interval > 0 {
		return schedule{kind: "interval", interval: cfg.Interval}, nil
	}
	return schedule{}, fmt.Errorf("reaper schedule requires cron or interval")
}

// next returns the next sweep time after now.
func (s schedule) next(now time.Time) (time.Time, error) {
	switch s.kind {
	case "cron":
		parsed, err := cronParser.Parse(s.cronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse reaper cron expression: %w", err)
		}
		return parsed.Next(now), nil
	case "interval":
		if s.interval <= 0 {
			return time.Time{}, fmt.Errorf("reaper interval must be positive")
		}
		return now.Add(s.interval), nil
	default:
		return time.Time{}, fmt.Errorf("reaper schedule not configured")
	}
}
