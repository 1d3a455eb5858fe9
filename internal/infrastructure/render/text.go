package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/davarch/build-notifier/internal/domain"
)

var linkRe = regexp.MustCompile(`<([^|<>]+)\|([^<>]+)>`)

// Flatten rewrites mrkdwn links <url|text> as "text (url)".
func Flatten(s string) string {
	return linkRe.ReplaceAllString(s, "$2 ($1)")
}

// Text renders m as plain text for sinks without attachment support.
func Text(m domain.Message) string {
	var sb strings.Builder
	if m.Pretext != "" {
		sb.WriteString(Flatten(m.Pretext))
		sb.WriteByte('\n')
	}
	sb.WriteString(m.Title)
	sb.WriteByte('\n')
	if m.TitleLink != "" {
		sb.WriteString(m.TitleLink)
		sb.WriteByte('\n')
	}
	writeFields(&sb, m.Fields)
	return sb.String()
}

// Body is Text without the title lines, for notifiers that show the title separately.
func Body(m domain.Message) string {
	var sb strings.Builder
	if m.Pretext != "" {
		sb.WriteString(Flatten(m.Pretext))
		sb.WriteByte('\n')
	}
	writeFields(&sb, m.Fields)
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []domain.Field) {
	for _, f := range fields {
		v := Flatten(f.Value)
		if strings.Contains(v, "\n") {
			fmt.Fprintf(sb, "%s:\n%s\n", f.Title, v)
			continue
		}
		fmt.Fprintf(sb, "%s: %s\n", f.Title, v)
	}
}

// PrettyMillis formats a duration the way people read it: 400ms, 1.5s, 1m 23.4s, 2h 5m.
func PrettyMillis(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", max(ms, 0))
	}

	const (
		second = 1000
		minute = 60 * second
		hour   = 60 * minute
		day    = 24 * hour
	)

	var parts []string
	if d := ms / day; d > 0 {
		parts = append(parts, fmt.Sprintf("%dd", d))
	}
	if h := ms % day / hour; h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m := ms % hour / minute; m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	tenths := ms % minute / 100
	switch {
	case tenths == 0:
	case tenths%10 == 0:
		parts = append(parts, fmt.Sprintf("%ds", tenths/10))
	default:
		parts = append(parts, fmt.Sprintf("%d.%ds", tenths/10, tenths%10))
	}
	return strings.Join(parts, " ")
}
