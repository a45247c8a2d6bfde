package backup

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	markerIcon  = "📋"
	markerTitle = "Wallet Verification Backup"

	// Header starts every backup message; both markers are used to find it again.
	Header = markerIcon + " **" + markerTitle + "**"
	// EmptyMessage is written when no holder has a resolvable role.
	EmptyMessage = Header + " - No verified users with roles."

	// MaxMessageLen is the chat platform's per-message character limit.
	MaxMessageLen = 2000
)

var (
	entryPattern = regexp.MustCompile(`<@!?(\d+)>:[ \t]*([^\n]+)`)
	partPattern  = regexp.MustCompile(`\(run ([0-9A-Za-z-]+), part (\d+)/(\d+)\)`)
)

// Entry is one holder's line in a backup.
type Entry struct {
	Identity  string
	RoleNames []string
}

// Encode renders entries as one or more backup messages, each under
// MaxMessageLen characters. Multi-part backups tag every part with runID so
// Decode can stitch them back together.
func Encode(entries []Entry, runID string) []string {
	lines := make([]string, 0, len(entries))
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Identity < sorted[j].Identity })
	for _, e := range sorted {
		if len(e.RoleNames) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("<@%s>: %s", e.Identity, strings.Join(e.RoleNames, ", ")))
	}
	if len(lines) == 0 {
		return []string{EmptyMessage}
	}

	// Reserve room for the longest possible tag so part boundaries do not
	// depend on the final part count.
	budget := MaxMessageLen - utf8.RuneCountInString(Header+partTag(runID, len(lines), len(lines))) - 1

	var chunks [][]string
	var cur []string
	size := 0
	for _, line := range lines {
		n := utf8.RuneCountInString(line) + 1
		if len(cur) > 0 && size+n > budget {
			chunks = append(chunks, cur)
			cur, size = nil, 0
		}
		cur = append(cur, line)
		size += n
	}
	chunks = append(chunks, cur)

	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		var b strings.Builder
		b.WriteString(Header)
		b.WriteString(partTag(runID, i+1, len(chunks)))
		b.WriteString("\n")
		for _, line := range chunk {
			b.WriteString(line)
			b.WriteString("\n")
		}
		out = append(out, b.String())
	}
	return out
}

func partTag(runID string, part, total int) string {
	return fmt.Sprintf(" (run %s, part %d/%d)", runID, part, total)
}

// IsBackup reports whether content carries both backup markers.
func IsBackup(content string) bool {
	return strings.Contains(content, markerIcon) && strings.Contains(content, markerTitle)
}

// Decode finds the newest backup among messages (ordered newest first) and
// returns identity -> role names. For a multi-part backup every part of the
// same run present in messages is read. ok is false when no backup exists.
func Decode(messages []string) (map[string][]string, bool) {
	newest := -1
	for i, m := range messages {
		if IsBackup(m) {
			newest = i
			break
		}
	}
	if newest < 0 {
		return nil, false
	}

	parts := []string{messages[newest]}
	if runID, ok := runOf(messages[newest]); ok {
		parts = parts[:0]
		for _, m := range messages {
			if id, ok := runOf(m); ok && id == runID && IsBackup(m) {
				parts = append(parts, m)
			}
		}
	}

	out := make(map[string][]string)
	for _, p := range parts {
		for _, match := range entryPattern.FindAllStringSubmatch(p, -1) {
			out[match[1]] = splitRoles(match[2])
		}
	}
	return out, true
}

func runOf(content string) (string, bool) {
	m := partPattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
