package transform

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slug derives a heading id from text: accents folded, lowercased, runs of
// anything but letters and digits collapsed to a single hyphen.
func Slug(text string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range norm.NFKD.String(text) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		case r == '_':
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

// slugger hands out unique ids for one page.
type slugger struct {
	used   map[string]bool
	counts map[string]int
}

func newSlugger() *slugger {
	return &slugger{used: map[string]bool{}, counts: map[string]int{}}
}

// reserve marks an id that already exists in the document.
func (s *slugger) reserve(id string) { s.used[id] = true }

// next returns base on first use and base-2, base-3, ... afterwards.
func (s *slugger) next(base string) string {
	if base == "" {
		base = "section"
	}
	for {
		s.counts[base]++
		id := base
		if n := s.counts[base]; n > 1 {
			id = base + "-" + strconv.Itoa(n)
		}
		if !s.used[id] {
			s.used[id] = true
			return id
		}
	}
}
