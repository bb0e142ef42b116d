package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

// FallbackSummary marks a minutes document synthesized after every parse attempt
// failed.
const FallbackSummary = "Automatic minutes generation failed. Please review the transcript."

type RepairStage string

const (
	RepairDirect      RepairStage = "direct"
	RepairBraces      RepairStage = "braces"
	RepairNormalized  RepairStage = "normalized"
	RepairUncommented RepairStage = "uncommented"
	RepairFallback    RepairStage = "fallback"
)

// RepairResult is the outcome of the repair ladder. Degraded is set only when the
// fallback document was produced.
type RepairResult struct {
	Document domain.MinutesDocument
	Stage    RepairStage
	Degraded bool
	Attempts []error
}

type repairAttempt struct {
	stage RepairStage
	parse func(string) (domain.MinutesDocument, error)
}

var repairLadder = []repairAttempt{
	{stage: RepairDirect, parse: decodeMinutes},
	{stage: RepairBraces, parse: func(raw string) (domain.MinutesDocument, error) {
		obj, err := outermostObject(raw)
		if err != nil {
			return domain.MinutesDocument{}, err
		}
		return decodeMinutes(obj)
	}},
	{stage: RepairNormalized, parse: func(raw string) (domain.MinutesDocument, error) {
		obj, err := outermostObject(raw)
		if err != nil {
			return domain.MinutesDocument{}, err
		}
		return decodeMinutes(normalizeJSON(obj))
	}},
	{stage: RepairUncommented, parse: func(raw string) (domain.MinutesDocument, error) {
		obj, err := outermostObject(stripComments(raw))
		if err != nil {
			return domain.MinutesDocument{}, err
		}
		return decodeMinutes(normalizeJSON(obj))
	}},
}

// RepairMinutes recovers a minutes document from raw completion output. It never
// fails: when every attempt is rejected it returns the fallback document.
func RepairMinutes(raw string, now time.Time) RepairResult {
	attempts := make([]error, 0, len(repairLadder))
	for _, attempt := range repairLadder {
		doc, err := attempt.parse(raw)
		if err == nil {
			return RepairResult{Document: doc, Stage: attempt.stage, Attempts: attempts}
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", attempt.stage, err))
	}
	return RepairResult{
		Document: fallbackMinutes(now),
		Stage:    RepairFallback,
		Degraded: true,
		Attempts: attempts,
	}
}

func fallbackMinutes(now time.Time) domain.MinutesDocument {
	doc := domain.MinutesDocument{
		Identification: domain.MinutesIdentification{Date: now.Format(domain.DateLayout)},
		Summary:        FallbackSummary,
	}
	doc.Normalize()
	return doc
}

var minutesFields = []string{
	"identificacion",
	"tareas_anteriores",
	"tareas_nuevas",
	"resumen_reunion",
	"observaciones_generales",
}

// minutesBody is the typed part of the schema that must decode for a document to be
// accepted. The identification block is decoded leniently because it is always
// replaced by the meeting's canonical data.
type minutesBody struct {
	PriorTasks   []domain.MinutesTask `json:"tareas_anteriores"`
	NewTasks     []domain.MinutesTask `json:"tareas_nuevas"`
	Summary      *string              `json:"resumen_reunion"`
	Observations *string              `json:"observaciones_generales"`
}

func decodeMinutes(text string) (domain.MinutesDocument, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.MinutesDocument{}, errors.New("empty payload")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return domain.MinutesDocument{}, fmt.Errorf("parse object: %w", err)
	}
	if fields == nil {
		return domain.MinutesDocument{}, errors.New("payload is null")
	}
	if !hasAnyField(fields, minutesFields) {
		return domain.MinutesDocument{}, errors.New("payload has none of the minutes fields")
	}

	var body minutesBody
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return domain.MinutesDocument{}, fmt.Errorf("validate schema: %w", err)
	}

	doc := domain.MinutesDocument{
		PriorTasks: body.PriorTasks,
		NewTasks:   body.NewTasks,
	}
	if body.Summary != nil {
		doc.Summary = *body.Summary
	}
	if body.Observations != nil {
		doc.Observations = *body.Observations
	}
	if rawIdent, ok := fields["identificacion"]; ok {
		var ident domain.MinutesIdentification
		if err := json.Unmarshal(rawIdent, &ident); err == nil {
			doc.Identification = ident
		}
	}
	doc.Normalize()
	return doc, nil
}

func hasAnyField(fields map[string]json.RawMessage, names []string) bool {
	for _, name := range names {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}

func outermostObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", errors.New("no json object found")
	}
	return raw[start : end+1], nil
}

// normalizeJSON drops trailing commas before '}' or ']' and quotes bare object keys.
// String literals are copied through untouched.
func normalizeJSON(text string) string {
	src := []rune(text)
	var out strings.Builder
	out.Grow(len(text) + 16)

	lastSignificant := rune(0)
	for i := 0; i < len(src); i++ {
		r := src[i]
		switch {
		case r == '"':
			end := stringEnd(src, i)
			out.WriteString(string(src[i:end]))
			i = end - 1
			lastSignificant = '"'
		case r == ',':
			next := nextNonSpace(src, i+1)
			if next < len(src) && (src[next] == '}' || src[next] == ']') {
				continue
			}
			out.WriteRune(r)
			lastSignificant = r
		case isIdentStart(r) && (lastSignificant == '{' || lastSignificant == ','):
			end := i
			for end < len(src) && isIdentPart(src[end]) {
				end++
			}
			colon := nextNonSpace(src, end)
			if colon < len(src) && src[colon] == ':' {
				out.WriteRune('"')
				out.WriteString(string(src[i:end]))
				out.WriteRune('"')
			} else {
				out.WriteString(string(src[i:end]))
			}
			i = end - 1
			lastSignificant = src[end-1]
		default:
			out.WriteRune(r)
			if !isSpace(r) {
				lastSignificant = r
			}
		}
	}
	return out.String()
}

// stripComments removes // line comments and /* */ block comments outside string
// literals.
func stripComments(text string) string {
	src := []rune(text)
	var out strings.Builder
	out.Grow(len(text))

	for i := 0; i < len(src); i++ {
		r := src[i]
		switch {
		case r == '"':
			end := stringEnd(src, i)
			out.WriteString(string(src[i:end]))
			i = end - 1
		case r == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				out.WriteRune('\n')
			}
		case r == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i++
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// stringEnd returns the index just past the string literal starting at src[start].
func stringEnd(src []rune, start int) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(src)
}

func nextNonSpace(src []rune, from int) int {
	for from < len(src) && isSpace(src[from]) {
		from++
	}
	return from
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
