package view

import (
	"fmt"
	"time"
	"unicode"

	"github.com/waclient/internal/model"
)

var weekdays = [...]string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatTime renders a list/bubble timestamp relative to now: HH:MM today,
// "Hier", a short weekday within the last week, dd/mm before that.
func FormatTime(t model.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.In(now.Location())
	switch {
	case sameDay(local, now):
		return local.Format("15:04")
	case sameDay(local, now.AddDate(0, 0, -1)):
		return "Hier"
	case local.After(now.AddDate(0, 0, -7)):
		return weekdays[local.Weekday()]
	}
	return local.Format("02/01")
}

// FormatDate renders dd/mm/yyyy.
func FormatDate(t model.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("02/01/2006")
}

// Truncate cuts s to n runes and appends "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Segment is a piece of highlighted text.
type Segment struct {
	Text  string
	Match bool
}

// Highlight splits s into segments, marking case-insensitive occurrences of term.
func Highlight(s, term string) []Segment {
	src, pat := []rune(s), []rune(term)
	if len(pat) == 0 {
		return []Segment{{Text: s}}
	}
	var (
		out   []Segment
		start int
	)
	for i := 0; i+len(pat) <= len(src); {
		if !foldEqual(src[i:i+len(pat)], pat) {
			i++
			continue
		}
		if start < i {
			out = append(out, Segment{Text: string(src[start:i])})
		}
		out = append(out, Segment{Text: string(src[i : i+len(pat)]), Match: true})
		i += len(pat)
		start = i
	}
	if start < len(src) {
		out = append(out, Segment{Text: string(src[start:])})
	}
	return out
}

func foldEqual(a, b []rune) bool {
	for i := range a {
		if unicode.ToLower(a[i]) != unicode.ToLower(b[i]) {
			return false
		}
	}
	return true
}

// highlighted renders matches as a row of text nodes.
func highlighted(s, term string, role Role) *Node {
	segs := Highlight(s, term)
	if len(segs) == 1 && !segs[0].Match {
		return text(s, role)
	}
	n := row()
	for _, seg := range segs {
		r := role
		if seg.Match {
			r = RoleHighlight
		}
		n.Children = append(n.Children, text(seg.Text, r))
	}
	return n
}

func lastSeen(u *model.User, now time.Time) string {
	if u == nil {
		return ""
	}
	if u.IsOnline {
		return "En ligne"
	}
	if u.LastSeen.IsZero() {
		return "Hors ligne"
	}
	return fmt.Sprintf("Vu %s", FormatTime(u.LastSeen, now))
}
