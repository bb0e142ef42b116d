package usecase

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

var repairNow = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func TestRepairMinutesDirect(t *testing.T) {
	raw := `{"resumen_reunion":"ok","tareas_nuevas":[{"id":"t9","descripcion":"Send the budget","responsable":"Ana"}]}`

	res := RepairMinutes(raw, repairNow)
	if res.Stage != RepairDirect {
		t.Fatalf("expected stage direct, got %s", res.Stage)
	}
	if res.Degraded {
		t.Fatalf("expected non-degraded result")
	}
	if res.Document.Summary != "ok" {
		t.Fatalf("unexpected summary %q", res.Document.Summary)
	}
	if len(res.Document.NewTasks) != 1 || res.Document.NewTasks[0].Owner != "Ana" {
		t.Fatalf("unexpected new tasks: %+v", res.Document.NewTasks)
	}
	if res.Document.PriorTasks == nil {
		t.Fatalf("expected prior tasks to be an empty list, got nil")
	}
}

func TestRepairMinutesExtractsOutermostObject(t *testing.T) {
	raw := "Here are the minutes:\n```json\n{\"resumen_reunion\": \"budget review\"}\n```\nLet me know."

	res := RepairMinutes(raw, repairNow)
	if res.Stage != RepairBraces {
		t.Fatalf("expected stage braces, got %s (attempts %v)", res.Stage, res.Attempts)
	}
	if res.Document.Summary != "budget review" {
		t.Fatalf("unexpected summary %q", res.Document.Summary)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("expected one failed attempt, got %d", len(res.Attempts))
	}
}

func TestRepairMinutesNormalizesTrailingCommasAndBareKeys(t *testing.T) {
	raw := `{resumen_reunion: "ok", tareas_nuevas: [{"descripcion": "Send budget",},],}`

	res := RepairMinutes(raw, repairNow)
	if res.Stage != RepairNormalized {
		t.Fatalf("expected stage normalized, got %s (attempts %v)", res.Stage, res.Attempts)
	}
	if res.Document.Summary != "ok" {
		t.Fatalf("unexpected summary %q", res.Document.Summary)
	}
	if len(res.Document.NewTasks) != 1 || res.Document.NewTasks[0].Description != "Send budget" {
		t.Fatalf("unexpected new tasks: %+v", res.Document.NewTasks)
	}
}

func TestRepairMinutesStripsComments(t *testing.T) {
	raw := "{\"resumen_reunion\": \"see http://example.com\", // summary\n \"observaciones_generales\": \"none\" /* block */\n}"

	res := RepairMinutes(raw, repairNow)
	if res.Stage != RepairUncommented {
		t.Fatalf("expected stage uncommented, got %s (attempts %v)", res.Stage, res.Attempts)
	}
	if res.Document.Summary != "see http://example.com" {
		t.Fatalf("string literal was altered: %q", res.Document.Summary)
	}
	if res.Document.Observations != "none" {
		t.Fatalf("unexpected observations %q", res.Document.Observations)
	}
}

func TestRepairMinutesFallback(t *testing.T) {
	cases := map[string]string{
		"prose":          "I cannot produce minutes for this meeting.",
		"unknown fields": `{"foo": 1}`,
		"wrong types":    `{"tareas_nuevas": "none"}`,
		"empty":          "",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res := RepairMinutes(raw, repairNow)
			if res.Stage != RepairFallback || !res.Degraded {
				t.Fatalf("expected degraded fallback, got %s", res.Stage)
			}
			if res.Document.Summary != FallbackSummary {
				t.Fatalf("unexpected summary %q", res.Document.Summary)
			}
			if res.Document.Identification.Date != "2024-03-04" {
				t.Fatalf("expected fallback date 2024-03-04, got %q", res.Document.Identification.Date)
			}
			if res.Document.NewTasks == nil || len(res.Document.NewTasks) != 0 {
				t.Fatalf("expected empty new tasks, got %+v", res.Document.NewTasks)
			}
			if len(res.Attempts) != len(repairLadder) {
				t.Fatalf("expected %d attempts, got %d", len(repairLadder), len(res.Attempts))
			}
		})
	}
}

func TestRepairMinutesAcceptsStringTasks(t *testing.T) {
	res := RepairMinutes(`{"tareas_nuevas":["Prepare the report", {"descripcion": "Book a room", "id": 3}]}`, repairNow)
	if res.Stage != RepairDirect {
		t.Fatalf("expected stage direct, got %s (attempts %v)", res.Stage, res.Attempts)
	}
	if len(res.Document.NewTasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(res.Document.NewTasks))
	}
	if res.Document.NewTasks[0].Description != "Prepare the report" {
		t.Fatalf("unexpected first task %+v", res.Document.NewTasks[0])
	}
	if res.Document.NewTasks[1].ID != "3" {
		t.Fatalf("expected numeric id to be kept as text, got %q", res.Document.NewTasks[1].ID)
	}
}

func TestNormalizeJSONLeavesStringsAlone(t *testing.T) {
	in := `{"a": "x, }", b: 1,}`
	want := `{"a": "x, }", "b": 1}`
	if got := normalizeJSON(in); got != want {
		t.Fatalf("normalizeJSON() = %q, want %q", got, want)
	}
}

func TestRepairMinutesIsIdempotent(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		stage RepairStage
	}{
		{
			name:  "direct",
			raw:   `{"identificacion":{"cliente":"Acme","participantes":["Ana"]},"resumen_reunion":"ok","tareas_nuevas":[{"id":"t1","descripcion":"Send the budget","responsable":"Ana","fecha_compromiso":"2024-03-11"}]}`,
			stage: RepairDirect,
		},
		{
			name:  "braces",
			raw:   "Minutes follow:\n{\"resumen_reunion\": \"budget review\", \"tareas_anteriores\": [\"Call the vendor\"]}\nDone.",
			stage: RepairBraces,
		},
		{
			name:  "normalized",
			raw:   `{resumen_reunion: "ok", tareas_nuevas: [{"descripcion": "Send budget", "id": 3,},],}`,
			stage: RepairNormalized,
		},
		{
			name:  "uncommented",
			raw:   "{\"resumen_reunion\": \"see http://example.com\", // summary\n \"observaciones_generales\": \"none\" /* block */\n}",
			stage: RepairUncommented,
		},
		{
			name:  "fallback",
			raw:   "I cannot produce minutes for this meeting.",
			stage: RepairFallback,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := RepairMinutes(tc.raw, repairNow)
			if first.Stage != tc.stage {
				t.Fatalf("first pass stage = %s, want %s (attempts %v)", first.Stage, tc.stage, first.Attempts)
			}
			encoded, err := json.Marshal(first.Document)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}

			second := RepairMinutes(string(encoded), repairNow)
			if second.Stage != RepairDirect {
				t.Fatalf("second pass stage = %s, want direct (attempts %v)", second.Stage, second.Attempts)
			}
			if !reflect.DeepEqual(first.Document, second.Document) {
				t.Fatalf("documents differ:\nfirst  %+v\nsecond %+v", first.Document, second.Document)
			}
		})
	}
}
