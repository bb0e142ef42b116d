package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
)

var (
	nestedSpeakerLine = regexp.MustCompile(`\[(\d+)\]:\s*\[([^\]]+)\]:\s*(.*)$`)
	flatSpeakerLine   = regexp.MustCompile(`\[([^\]]+)\]:\s*(.*)$`)
)

// refineSpeakers asks the completion service to re-attribute every segment and
// returns a sequence of exactly len(segments) entries. Any failure yields the input
// unchanged.
func refineSpeakers(ctx context.Context, llm ports.CompletionService, meetingID string, segments []domain.TranscriptSegment) []domain.TranscriptSegment {
	if llm == nil || len(segments) == 0 {
		return segments
	}

	content, err := llm.Complete(ctx, ports.CompletionRequest{
		Messages:    []ports.ChatMessage{{Role: "user", Content: buildRefinementPrompt(segments)}},
		Temperature: 0.1,
	})
	if err != nil {
		slog.Warn("speaker_refinement_failed", "meeting_id", meetingID, "error", err)
		return segments
	}
	return applySpeakerLines(segments, content)
}

// applySpeakerLines aligns response lines with segments by position. Speaker labels
// are mapped to fresh SpeakerK tokens in first-seen order.
func applySpeakerLines(segments []domain.TranscriptSegment, content string) []domain.TranscriptSegment {
	lines := make([]string, 0, len(segments))
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	out := make([]domain.TranscriptSegment, len(segments))
	copy(out, segments)

	tokens := make(map[string]string)
	for i := 0; i < len(out) && i < len(lines); i++ {
		label, text, ok := parseSpeakerLine(lines[i])
		if !ok {
			continue
		}
		token, seen := tokens[label]
		if !seen {
			token = fmt.Sprintf("Speaker%d", len(tokens)+1)
			tokens[label] = token
		}
		out[i].Speaker = token
		out[i].Text = text
	}
	return out
}

func parseSpeakerLine(line string) (label, text string, ok bool) {
	if m := nestedSpeakerLine.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[2]), strings.TrimSpace(m[3]), true
	}
	if m := flatSpeakerLine.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
	}
	return "", "", false
}

func changedSegments(before, after []domain.TranscriptSegment) []domain.TranscriptSegment {
	changed := make([]domain.TranscriptSegment, 0)
	for i := 0; i < len(before) && i < len(after); i++ {
		if before[i].Speaker != after[i].Speaker || before[i].Text != after[i].Text {
			changed = append(changed, after[i])
		}
	}
	return changed
}
