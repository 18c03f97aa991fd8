package ai

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	summaryPattern = regexp.MustCompile(`(?is)<summary>(.*?)</summary>`)
	agendaPattern  = regexp.MustCompile(`(?is)<agenda>(.*?)</agenda>`)
)

// parseUpdate extracts the summary and agenda from the assistant's raw
// text. A reply without tags still yields a usable summary (the whole
// text), and a missing agenda block preserves the previous agenda so a
// malformed response can never erase it.
func parseUpdate(raw, previousAgenda string) (summary, agenda string, err error) {
	if m := summaryPattern.FindStringSubmatch(raw); m != nil {
		summary = strings.TrimSpace(m[1])
	} else {
		summary = strings.TrimSpace(raw)
	}
	if summary == "" {
		return "", "", fmt.Errorf("%w: reply contained no summary content", ErrProtocol)
	}

	if m := agendaPattern.FindStringSubmatch(raw); m != nil {
		agenda = strings.TrimSpace(m[1])
	} else {
		agenda = previousAgenda
	}
	return summary, agenda, nil
}
