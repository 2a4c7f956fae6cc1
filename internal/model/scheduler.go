package model

import "srx-config-parser/internal/xmldoc"

// Weekdays lists the day keys of a scheduler in output order.
var Weekdays = []string{"daily", "sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

const (
	PatternAllDay  = "all-day"
	PatternExclude = "exclude"
)

// DayPattern is either [all-day], [exclude] or a list of "<start>;<stop>" pairs.
type DayPattern struct {
	Day     string   `json:"day"`
	Pattern []string `json:"pattern"`
}

type Scheduler struct {
	Base
	StartStopDates []string     `json:"start_stop_dates,omitempty"`
	Days           []DayPattern `json:"days,omitempty"`
}

func (*Scheduler) Kind() Kind { return KindScheduler }

func ParseScheduler(ctx *Context, node *xmldoc.Node) (*Scheduler, error) {
	base, err := newBase(node, "")
	if err != nil {
		return nil, err
	}
	s := &Scheduler{Base: base}

	for _, pair := range node.ChildrenNamed("start-date") {
		start, stop := pair.Value("start-date"), pair.Value("stop-date")
		if start == "" || stop == "" {
			ctx.manual(&s.Base, pair.Line, "Incomplete date range",
				"scheduler %q has a date range %q-%q missing a bound; range dropped", s.Name, start, stop)
			continue
		}
		s.StartStopDates = append(s.StartStopDates, start+";"+stop)
	}

	for _, day := range Weekdays {
		dayNode := node.Child(day)
		if dayNode == nil {
			continue
		}
		var pattern []string
		switch {
		case dayNode.Has(PatternExclude):
			pattern = []string{PatternExclude}
		case dayNode.Has(PatternAllDay):
			pattern = []string{PatternAllDay}
		default:
			for _, window := range dayNode.ChildrenNamed("start-time") {
				start := window.Value("start-time-value")
				if start == "" {
					start = window.NameValue()
				}
				stop := window.Value("stop-time")
				if start == "" || stop == "" {
					ctx.manual(&s.Base, window.Line, "Incomplete time window",
						"scheduler %q %s window %q-%q is missing a bound; window dropped", s.Name, day, start, stop)
					continue
				}
				pattern = append(pattern, start+";"+stop)
			}
		}
		if len(pattern) > 0 {
			s.Days = append(s.Days, DayPattern{Day: day, Pattern: pattern})
		}
	}
	return s, nil
}
