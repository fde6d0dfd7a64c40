package ledger

import (
	"fmt"
	"time"
)

// Window is an inclusive [From, To] interval in epoch seconds
type Window struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]",
		time.Unix(w.From, 0).UTC().Format(time.RFC3339),
		time.Unix(w.To, 0).UTC().Format(time.RFC3339))
}

// StartOfMonth returns the first instant of t's calendar month in UTC
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ResolveWindow computes the interval of the next incremental fetch. Without a
// stored expense it starts at the beginning of the current month, otherwise at
// the latest stored expense timestamp.
func ResolveWindow(now time.Time, latest int64, hasLatest bool) Window {
	to := now.UTC().Unix()
	if !hasLatest {
		return Window{From: StartOfMonth(now).Unix(), To: to}
	}
	from := latest
	if from > to {
		from = to
	}
	return Window{From: from, To: to}
}

// PreviousMonthWindow returns the whole previous calendar month. The end is one
// second before the current month starts so it never overlaps ResolveWindow.
func PreviousMonthWindow(now time.Time) Window {
	current := StartOfMonth(now)
	previous := current.AddDate(0, -1, 0)
	return Window{From: previous.Unix(), To: current.Unix() - 1}
}

// Split cuts the window into consecutive chunks no longer than limit, oldest first
func (w Window) Split(limit time.Duration) []Window {
	step := int64(limit / time.Second)
	if step <= 0 || w.To-w.From <= step {
		return []Window{w}
	}

	var out []Window
	for from := w.From; from <= w.To; {
		to := from + step
		if to > w.To {
			to = w.To
		}
		out = append(out, Window{From: from, To: to})
		if to == w.To {
			break
		}
		from = to + 1
	}
	return out
}

// PeriodWindow returns the report window for week, month or year ending at now.
// Any other period falls back to the last seven days.
func PeriodWindow(period string, now time.Time) Window {
	now = now.UTC()
	var start time.Time
	switch period {
	case "week":
		offset := (int(now.Weekday()) + 6) % 7 // days since Monday
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start = day.AddDate(0, 0, -offset)
	case "month":
		start = StartOfMonth(now)
	case "year":
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		start = now.AddDate(0, 0, -7)
	}
	return Window{From: start.Unix(), To: now.Unix()}
}
