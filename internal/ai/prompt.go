package ai

import (
	"fmt"
	"strings"
)

// systemInstruction is handed verbatim to every provider. The tag wrapping
// is what the parser relies on; the no-deletion rule keeps the agenda from
// shrinking across updates.
const systemInstruction = `You are an assistant for a live meeting. Given the transcript so far, the facilitator's notes, and the current agenda, do two things:
1. Write a concise free-form summary of the meeting so far, covering key points, decisions made, and open questions.
2. Return an updated version of the markdown agenda. You may tick finished items with [x], mark skipped items with [~], add sub-items or short annotations, and reorder items. Never delete an agenda item.
Respond exactly in this format:
<summary>your summary</summary>
<agenda>the updated markdown agenda</agenda>`

const (
	placeholderTranscript = "(no transcript yet)"
	placeholderNotes      = "(no notes)"
	placeholderAgenda     = "(no agenda)"
)

// temperature is deliberately low: updates should be stable across
// invocations on the same transcript.
const temperature = 0.2

// buildUserPrompt serializes the snapshot into the user message. Each
// transcript line is rendered as "{speaker}: {text} [{mm:ss}]".
func buildUserPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Transcript:\n")
	if len(req.Transcript) == 0 {
		b.WriteString(placeholderTranscript)
		b.WriteString("\n")
	} else {
		for _, line := range req.Transcript {
			fmt.Fprintf(&b, "%s: %s [%s]\n", line.Speaker, line.Text, formatTimestamp(line.StartMS))
		}
	}

	b.WriteString("\nNotes:\n")
	if strings.TrimSpace(req.Notes) == "" {
		b.WriteString(placeholderNotes)
	} else {
		b.WriteString(req.Notes)
	}

	b.WriteString("\n\nAgenda:\n")
	if strings.TrimSpace(req.Agenda) == "" {
		b.WriteString(placeholderAgenda)
	} else {
		b.WriteString(req.Agenda)
	}
	b.WriteString("\n")

	return b.String()
}

func formatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
