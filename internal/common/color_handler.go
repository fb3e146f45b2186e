package common

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
	ansiGray    = "\033[90m"
)

// Attribute keys the console layout treats specially. The first three come
// from Logger.WithComponent, WithChangeset and WithDirection.
const (
	keyComponent  = "component"
	keyChangeset  = "changeset"
	keyDirection  = "direction"
	keyExitCode   = "exit_code"
	keyApplied    = "applied"
	keySkipped    = "skipped"
	keyConcurrent = "concurrent"
	keyPending    = "pending"
	keyFailed     = "failed"
	keyStatus     = "status"
)

// ColorHandler renders records for a person watching a migration run:
//
//	09:00:00.015 INFO  [runner] 2_create_schools_table ↑ changeset applied elapsed=15ms
//
// The component and the changeset with its direction lead the line, run
// counts and exit codes are colored by outcome, and sensitive values are
// masked.
type ColorHandler struct {
	opts     *slog.HandlerOptions
	mu       *sync.Mutex
	writer   io.Writer
	attrs    []slog.Attr
	groups   []string
	masker   *Masker
	useColor bool
}

// NewColorHandler creates a handler writing to w. Colors are enabled only
// when w is a terminal and NO_COLOR is unset.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		opts:     opts,
		mu:       &sync.Mutex{},
		writer:   w,
		useColor: shouldUseColor(w),
		masker:   NewMasker(),
	}
}

func shouldUseColor(w io.Writer) bool {
	if runtime.GOOS == "windows" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// SetMasker replaces the masker; nil disables masking.
func (h *ColorHandler) SetMasker(masker *Masker) {
	h.masker = masker
}

// SetColorEnabled forces colors on or off.
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// line is a record split into the parts the layout places separately.
type line struct {
	component string
	changeset string
	direction string
	rest      []slog.Attr
}

func (h *ColorHandler) split(attrs []slog.Attr) line {
	var l line
	for _, a := range attrs {
		switch a.Key {
		case keyComponent:
			l.component = a.Value.String()
		case keyChangeset:
			l.changeset = a.Value.String()
		case keyDirection:
			l.direction = a.Value.String()
		default:
			l.rest = append(l.rest, a)
		}
	}
	return l
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	l := h.split(h.mask(attrs))

	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(h.paint(ansiGray, r.Time.Format("15:04:05.000")))
		b.WriteByte(' ')
	}
	b.WriteString(h.level(r.Level))
	b.WriteByte(' ')

	scope := l.component
	if len(h.groups) > 0 {
		scope = strings.Trim(scope+"."+strings.Join(h.groups, "."), ".")
	}
	if scope != "" {
		b.WriteString(h.paint(ansiCyan, "["+scope+"]"))
		b.WriteByte(' ')
	}
	if l.changeset != "" {
		b.WriteString(h.paint(ansiBold+ansiMagenta, l.changeset))
		if arrow := h.arrow(l.direction); arrow != "" {
			b.WriteByte(' ')
			b.WriteString(arrow)
		}
		b.WriteByte(' ')
	} else if l.direction != "" {
		l.rest = append([]slog.Attr{slog.String(keyDirection, l.direction)}, l.rest...)
	}

	msg := r.Message
	if r.Level >= slog.LevelError {
		msg = h.paint(ansiRed, msg)
	}
	b.WriteString(msg)

	for _, a := range l.rest {
		b.WriteByte(' ')
		b.WriteString(h.paint(ansiGray, a.Key+"="))
		b.WriteString(h.value(a.Key, a.Value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *ColorHandler) level(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.paint(ansiRed, "ERROR")
	case level >= slog.LevelWarn:
		return h.paint(ansiYellow, "WARN ")
	case level >= slog.LevelInfo:
		return h.paint(ansiGreen, "INFO ")
	default:
		return h.paint(ansiGray, "DEBUG")
	}
}

// arrow marks forward changesets with ↑ and reverts with ↓.
func (h *ColorHandler) arrow(direction string) string {
	switch direction {
	case "up":
		return h.paint(ansiGreen, "↑")
	case "down":
		return h.paint(ansiYellow, "↓")
	case "":
		return ""
	default:
		return "(" + direction + ")"
	}
}

func (h *ColorHandler) value(key string, v slog.Value) string {
	v = v.Resolve()
	text := plain(v)

	switch key {
	case "error", "err":
		return h.paint(ansiRed, text)
	case keyExitCode:
		if v.Kind() == slog.KindInt64 && v.Int64() == 0 {
			return h.paint(ansiGreen, text)
		}
		return h.paint(ansiBold+ansiRed, text)
	case keyApplied:
		return h.count(v, ansiGreen, text)
	case keyConcurrent, keyPending:
		return h.count(v, ansiYellow, text)
	case keySkipped:
		return h.paint(ansiGray, text)
	case keyFailed:
		if v.Kind() == slog.KindBool && v.Bool() {
			return h.paint(ansiRed, text)
		}
		return text
	case keyStatus:
		switch strings.ToLower(v.String()) {
		case "ok", "success":
			return h.paint(ansiGreen, text)
		case "pending":
			return h.paint(ansiYellow, text)
		case "failure", "unavailable":
			return h.paint(ansiRed, text)
		}
	}

	switch v.Kind() {
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.paint(ansiMagenta, text)
	case slog.KindDuration:
		return h.paint(ansiYellow, text)
	}
	return text
}

// count highlights non-zero counts; zero stays plain.
func (h *ColorHandler) count(v slog.Value, color, text string) string {
	if v.Kind() == slog.KindInt64 && v.Int64() == 0 {
		return text
	}
	return h.paint(color, text)
}

func plain(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return quoteIfNeeded(v.String())
	case slog.KindDuration:
		d := v.Duration()
		if d >= time.Millisecond {
			d = d.Round(time.Millisecond)
		}
		return d.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}
		if ss, ok := v.Any().([]string); ok {
			return "[" + strings.Join(ss, ",") + "]"
		}
	}
	return quoteIfNeeded(v.String())
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '=' || !unicode.IsPrint(r)
	}) {
		return strconv.Quote(s)
	}
	return s
}

func (h *ColorHandler) paint(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + ansiReset
}

func (h *ColorHandler) mask(attrs []slog.Attr) []slog.Attr {
	if h.masker == nil || !h.masker.IsEnabled() {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		switch {
		case h.masker.IsSensitiveKey(a.Key):
			out[i] = slog.String(a.Key, MaskedValue)
		case a.Value.Kind() == slog.KindString:
			out[i] = slog.String(a.Key, h.masker.MaskString(a.Value.String()))
		case a.Value.Kind() == slog.KindAny:
			if err, ok := a.Value.Any().(error); ok {
				out[i] = slog.String(a.Key, h.masker.MaskString(err.Error()))
				continue
			}
			out[i] = a
		default:
			out[i] = a
		}
	}
	return out
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Concat(h.attrs, attrs)
	return &c
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.groups = slices.Concat(h.groups, []string{name})
	return &c
}
