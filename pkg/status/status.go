// Package status reports which changesets a database has applied.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/schoolsys/internal/changeset"
	"github.com/loykin/schoolsys/internal/migration"
)

// Status display constants
const (
	defaultHistoryLimit = 10 // Default number of history entries to show
)

// Item is one known changeset and whether the ledger has it.
// AppliedAt is an RFC3339 timestamp in UTC, empty when pending.
type Item struct {
	ID        string `json:"id" yaml:"id"`
	Applied   bool   `json:"applied" yaml:"applied"`
	AppliedAt string `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
	HasDown   bool   `json:"has_down" yaml:"has_down"`
}

// HistoryItem is a single apply or revert attempt.
type HistoryItem struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Direction string `json:"direction" yaml:"direction"`
	Failed    bool   `json:"failed" yaml:"failed"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	RanAt     string `json:"ran_at" yaml:"ran_at"`
}

// Info aggregates status information: the latest applied changeset, every
// known changeset, entries this build does not know, and run history.
type Info struct {
	Current string        `json:"current" yaml:"current"`
	Items   []Item        `json:"changesets" yaml:"changesets"`
	Pending []string      `json:"pending" yaml:"pending"`
	Unknown []string      `json:"unknown,omitempty" yaml:"unknown,omitempty"`
	History []HistoryItem `json:"history,omitempty" yaml:"history,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FromRunner collects status information through the runner's ledger and
// source. The ledger tables are created when missing.
func FromRunner(ctx context.Context, r *migration.Runner) (Info, error) {
	if err := r.Ledger.EnsureStorage(ctx); err != nil {
		return Info{}, &migration.StorageError{Op: "ensure storage", Err: err}
	}
	pending, err := r.Pending(ctx)
	if err != nil {
		return Info{}, err
	}
	entries, err := r.Ledger.Entries(ctx)
	if err != nil {
		return Info{}, &migration.StorageError{Op: "list entries", Err: err}
	}
	runs, err := r.Ledger.ListRuns(ctx)
	if err != nil {
		return Info{}, &migration.StorageError{Op: "list runs", Err: err}
	}
	list, err := r.Discover()
	if err != nil {
		return Info{}, err
	}

	appliedAt := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		appliedAt[changeset.CanonicalID(e.Name)] = e.ExecutedAt
	}

	info := Info{Pending: make([]string, 0, len(pending))}
	if len(entries) > 0 {
		info.Current = changeset.CanonicalID(entries[len(entries)-1].Name)
	}
	known := make(map[string]struct{}, len(list))
	for _, cs := range list {
		known[cs.ID] = struct{}{}
		at, ok := appliedAt[cs.ID]
		info.Items = append(info.Items, Item{
			ID:        cs.ID,
			Applied:   ok,
			AppliedAt: formatTime(at),
			HasDown:   cs.HasDown(),
		})
	}
	for _, cs := range pending {
		info.Pending = append(info.Pending, cs.ID)
	}
	for _, e := range entries {
		if _, ok := known[changeset.CanonicalID(e.Name)]; !ok {
			info.Unknown = append(info.Unknown, e.Name)
		}
	}
	for _, run := range runs {
		info.History = append(info.History, HistoryItem{
			ID:        run.ID,
			Name:      run.Name,
			Direction: run.Direction,
			Failed:    run.Failed,
			Error:     run.Error,
			RanAt:     formatTime(run.RanAt),
		})
	}
	return info, nil
}

func (i Info) base() string {
	var b strings.Builder
	current := i.Current
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(&b, "current: %s\n", current)
	for _, it := range i.Items {
		mark := "[ ]"
		if it.Applied {
			mark = "[x]"
		}
		if it.AppliedAt != "" {
			fmt.Fprintf(&b, "%s %s (%s)\n", mark, it.ID, it.AppliedAt)
		} else {
			fmt.Fprintf(&b, "%s %s\n", mark, it.ID)
		}
	}
	fmt.Fprintf(&b, "pending: %d\n", len(i.Pending))
	if len(i.Unknown) > 0 {
		fmt.Fprintf(&b, "unknown to this build: %s\n", strings.Join(i.Unknown, ", "))
	}
	return b.String()
}

func formatHistoryLine(h HistoryItem) string {
	line := fmt.Sprintf("#%d %s dir=%s failed=%t at=%s", h.ID, h.Name, h.Direction, h.Failed, h.RanAt)
	if h.Error != "" {
		line += " error=" + h.Error
	}
	return line + "\n"
}

// FormatHuman returns a human-friendly multiline string for CLI output.
// history=true additionally appends the full history, oldest first.
func (i Info) FormatHuman(history bool) string {
	base := i.base()
	if !history {
		return base
	}
	if len(i.History) == 0 {
		return base + "history: \n"
	}
	out := base + "history:\n"
	for _, h := range i.History {
		out += formatHistoryLine(h)
	}
	return out
}

// FormatHumanWithLimit prints status like FormatHuman, but when history=true it prints
// newest-first up to the provided limit. If all=true, the entire history is printed
// newest-first and limit is ignored. Default behavior when limit<=0 is 10.
func (i Info) FormatHumanWithLimit(history bool, limit int, all bool) string {
	base := i.base()
	if !history {
		return base
	}
	if len(i.History) == 0 {
		return base + "history: \n"
	}
	rev := make([]HistoryItem, len(i.History))
	for idx := range i.History {
		rev[len(i.History)-1-idx] = i.History[idx]
	}
	items := rev
	if !all {
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		if len(items) > limit {
			items = items[:limit]
		}
	}
	out := base + "history:\n"
	for _, h := range items {
		out += formatHistoryLine(h)
	}
	return out
}
