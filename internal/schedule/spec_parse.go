package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind describes the normalized kind of a schedule string: either a cron
// expression (robfig/cron) or a fixed interval.
type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

// Spec is a parsed, ready-to-use schedule. Cron expressions are compiled at
// parse time so bad specs fail at config load, not at first trigger.
type Spec struct {
	Kind   Kind
	Cron   cron.Schedule
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

// Next returns the delay from now until the schedule's next firing.
func (s Spec) Next(now time.Time) time.Duration {
	if s.Kind == KindCron && s.Cron != nil {
		d := s.Cron.Next(now).Sub(now)
		if d < 0 {
			d = 0
		}
		return d
	}
	return s.Every
}

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// Parse parses a schedule string into either a compiled cron schedule or an
// interval duration.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	// Prefixes (explicit)
	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Spec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(expr)
	}
	for _, prefix := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, prefix) {
			v := strings.TrimSpace(s[len(prefix):])
			d, src, err := parseInterval(v)
			if err != nil {
				return Spec{}, err
			}
			return Spec{Kind: KindInterval, Every: d, Source: src}, nil
		}
	}

	// Heuristics:
	// - any whitespace or leading '@' => cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}

	// - HH:MM => interval duration
	if reHHMM.MatchString(s) {
		d, err := parseHHMMDuration(s)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindInterval, Every: d, Source: "hhmm"}, nil
	}

	// - Go duration => interval duration
	d, err := time.ParseDuration(s)
	if err == nil {
		if d <= 0 {
			return Spec{}, fmt.Errorf("interval must be > 0")
		}
		return Spec{Kind: KindInterval, Every: d, Source: "duration"}, nil
	}

	return Spec{}, fmt.Errorf(
		"invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '02:30', or duration like '55m')",
		raw,
	)
}

func parseCron(expr string) (Spec, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: KindCron, Cron: sched, Source: "cron"}, nil
}

func parseInterval(v string) (time.Duration, string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, "", fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		return d, "hhmm", err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, "", fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, "", fmt.Errorf("interval must be > 0")
	}
	return d, "duration", nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	// safe parse: hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
