package escalation

import (
	"fmt"
	"strings"
	"time"
)

// BusinessHoursConfig is the YAML form of the support desk schedule.
type BusinessHoursConfig struct {
	Timezone string   `yaml:"timezone"`
	Days     []string `yaml:"days"`
	Open     string   `yaml:"open"`
	Close    string   `yaml:"close"`
}

// DefaultBusinessHours is Monday to Friday, 09:00 to 17:30 Amsterdam time.
func DefaultBusinessHours() BusinessHoursConfig {
	return BusinessHoursConfig{
		Timezone: "Europe/Amsterdam",
		Days:     []string{"mon", "tue", "wed", "thu", "fri"},
		Open:     "09:00",
		Close:    "17:30",
	}
}

// BusinessHours decides whether a human is available.
type BusinessHours struct {
	loc   *time.Location
	days  map[time.Weekday]bool
	open  time.Duration
	close time.Duration
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// NewBusinessHours parses cfg.
func NewBusinessHours(cfg BusinessHoursConfig) (*BusinessHours, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("business hours timezone %q: %w", cfg.Timezone, err)
	}
	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("business hours open: %w", err)
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("business hours close: %w", err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("business hours close %s must be after open %s", cfg.Close, cfg.Open)
	}
	days := make(map[time.Weekday]bool, len(cfg.Days))
	for _, d := range cfg.Days {
		name := strings.ToLower(strings.TrimSpace(d))
		if len(name) > 3 {
			name = name[:3]
		}
		wd, ok := weekdays[name]
		if !ok {
			return nil, fmt.Errorf("business hours: unknown day %q", d)
		}
		days[wd] = true
	}
	return &BusinessHours{loc: loc, days: days, open: open, close: closeAt}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// IsOpen reports whether t falls inside business hours.
func (b *BusinessHours) IsOpen(t time.Time) bool {
	local := t.In(b.loc)
	if !b.days[local.Weekday()] {
		return false
	}
	sinceMidnight := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	return sinceMidnight >= b.open && sinceMidnight < b.close
}
