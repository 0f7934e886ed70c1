package domain

import "time"

// EventDefinition is a named recurring occurrence pinned to a month and an
// approximate week of that month. Static configuration, never mutated at
// runtime.
type EventDefinition struct {
	Name              string
	Month             time.Month
	ApproxWeekOfMonth int // 1-based
	DurationDays      int
	Targets           []string // logical target ids the event publishes against
	Category          string
	Description       string
}

// EventWindow is the concrete date range derived from an EventDefinition for
// one construction year. Boundaries are UTC midnights; each interval is
// half-open, so End is the first instant after the event's last day.
type EventWindow struct {
	PreviewStart time.Time // Start − 7 days
	Start        time.Time
	End          time.Time // Start + DurationDays
	WrapEnd      time.Time // End + 3 days
}

const (
	previewDays = 7
	wrapDays    = 3
)

// EventState is the lifecycle phase of a recurring event relative to "now".
type EventState string

const (
	StatePreview EventState = "preview"
	StateLive    EventState = "live"
	StateWrap    EventState = "wrap"
	StateDormant EventState = "dormant"
)

// Priority returns the story priority carried by this state. Live events are
// hero stories; preview and wrap coverage runs standard.
func (s EventState) Priority() StoryPriority {
	if s == StateLive {
		return PriorityHero
	}
	return PriorityStandard
}

// WindowForYear computes the concrete window an EventDefinition produces when
// constructed for the given year. Week arithmetic can push PreviewStart (and
// for late-December events, Start) across a year boundary; callers must not
// assume the window lies inside its construction year.
func WindowForYear(def EventDefinition, year int) EventWindow {
	week := def.ApproxWeekOfMonth
	if week < 1 {
		week = 1
	}
	duration := def.DurationDays
	if duration < 1 {
		duration = 1
	}

	start := time.Date(year, def.Month, 1+(week-1)*7, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, duration)
	return EventWindow{
		PreviewStart: start.AddDate(0, 0, -previewDays),
		Start:        start,
		End:          end,
		WrapEnd:      end.AddDate(0, 0, wrapDays),
	}
}

// classify places now within one candidate window, or returns dormant.
func classify(now time.Time, w EventWindow) EventState {
	switch {
	case !now.Before(w.Start) && now.Before(w.End):
		return StateLive
	case !now.Before(w.PreviewStart) && now.Before(w.Start):
		return StatePreview
	case !now.Before(w.End) && now.Before(w.WrapEnd):
		return StateWrap
	default:
		return StateDormant
	}
}

// ResolveState returns the event's lifecycle state and active window for
// "now". Candidate windows are built for the previous, current, and next
// calendar year, because a January event's preview window can begin in the
// final days of the prior December while now.Year() still names that prior
// year. The first non-dormant candidate wins; the function is total and
// returns exactly one state for every (definition, now) pair.
func ResolveState(def EventDefinition, now time.Time) (EventState, EventWindow) {
	for _, year := range []int{now.Year() - 1, now.Year(), now.Year() + 1} {
		w := WindowForYear(def, year)
		if state := classify(now, w); state != StateDormant {
			return state, w
		}
	}
	return StateDormant, WindowForYear(def, now.Year())
}
