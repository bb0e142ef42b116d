package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

func buildRefinementPrompt(segments []domain.TranscriptSegment) string {
	var lines strings.Builder
	for i, segment := range segments {
		fmt.Fprintf(&lines, "[%d]: %s\n", i, segment.Text)
	}

	return `Analyze this meeting transcript. Every line starts with a number [0], [1], etc.
Identify changes of speaker based on:
- changes of topic or context
- question and answer patterns
- changes in tone or speaking style
- references to other participants

Answer ONLY with the same lines in the same order, replacing [number] with [Speaker N] where N is unique per speaker (Speaker 1, Speaker 2, Speaker 3...).
If you can identify roles (Client, Moderator, Engineer), use them instead of numbers.

Transcript:
` + lines.String() + `
Answer in the same format, changing only the speaker identifiers.`
}

func buildMinutesPrompt(ident domain.MinutesIdentification, defaultDueDate string, maxTasks int, segments []domain.TranscriptSegment) string {
	participants, _ := json.Marshal(ident.Participants)

	var transcript strings.Builder
	for _, segment := range segments {
		fmt.Fprintf(&transcript, "[%s]: %s\n", segment.Speaker, segment.Text)
	}

	return fmt.Sprintf(`Generate meeting minutes as JSON. You MUST use this identification data exactly as given (do not change it): cliente=%q, proyecto=%q, responsable=%q, participantes=%s, fecha=%q, hora_inicio=%q, hora_fin=%q.

JSON structure:
{
  "identificacion": {
    "cliente": "",
    "proyecto": "",
    "fecha": "",
    "hora_inicio": "",
    "hora_fin": "",
    "responsable": "",
    "participantes": []
  },
  "tareas_anteriores": [],
  "tareas_nuevas": [],
  "resumen_reunion": "",
  "observaciones_generales": ""
}

CRITICAL rules:
- identificacion: use EXACTLY the data given above.
- resumen_reunion: concise, useful summary (2-4 sentences) of the main topics discussed.
- tareas_nuevas:
  * ONLY extract REAL and SPECIFIC tasks explicitly mentioned in the transcript.
  * Every task has: id (task_1, task_2, task_3... sequential and unique), descripcion (clear, specific, actionable; never generic like "keep working" or "review"), responsable (name mentioned or inferred from context), fecha_compromiso (the specific date if one is mentioned; otherwise use "%s").
  * DO NOT invent tasks that are not in the transcript.
  * DO NOT include generic, vague or repeated tasks.
  * If two tasks are similar, merge them into one.
  * At most %d tasks. If there are more, keep the most important ones.
- tareas_anteriores: only when the transcript EXPLICITLY mentions tasks from previous meetings or earlier pending work. Otherwise leave the array empty.
- observaciones_generales: brief additional notes if any.

Transcript:
%s
IMPORTANT: read the transcript carefully and only extract tasks that are REALLY mentioned. If there are no clear tasks, leave tareas_nuevas empty. Answer ONLY with valid JSON, no additional text.`,
		ident.Client, ident.Project, ident.Responsible, string(participants), ident.Date, ident.StartTime, ident.EndTime,
		defaultDueDate, maxTasks, transcript.String(),
	)
}
