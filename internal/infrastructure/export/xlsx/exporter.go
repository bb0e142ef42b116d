package xlsx

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

const (
	SheetMinutes = "Acta"
	SheetTasks   = "Tareas"
)

// Exporter renders a meeting's minutes and task table as an xlsx workbook with one
// sheet for the document and one for the persisted tasks.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(meeting *domain.Meeting, doc *domain.MinutesDocument, tasks []domain.Task) ([]byte, error) {
	if meeting == nil || doc == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export minutes", fmt.Errorf("meeting and minutes are required"))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMinutes); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetTasks); err != nil {
		return nil, fmt.Errorf("create tasks sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	if err := writeMinutesSheet(f, bold, meeting, doc); err != nil {
		return nil, err
	}
	if err := writeTasksSheet(f, bold, tasks); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMinutesSheet(f *excelize.File, bold int, meeting *domain.Meeting, doc *domain.MinutesDocument) error {
	ident := doc.Identification
	rows := [][]any{
		{"Reunión", meeting.ID},
		{"Cliente", ident.Client},
		{"Proyecto", ident.Project},
		{"Fecha", ident.Date},
		{"Hora inicio", ident.StartTime},
		{"Hora fin", ident.EndTime},
		{"Responsable", ident.Responsible},
		{"Participantes", strings.Join(ident.Participants, ", ")},
		{},
		{"Resumen", doc.Summary},
		{"Observaciones", doc.Observations},
		{},
	}
	rows = appendTaskBlock(rows, "Tareas anteriores", doc.PriorTasks)
	rows = append(rows, []any{})
	rows = appendTaskBlock(rows, "Tareas nuevas", doc.NewTasks)

	for i, row := range rows {
		if err := setRow(f, SheetMinutes, i+1, row); err != nil {
			return err
		}
		if len(row) > 0 {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetCellStyle(SheetMinutes, cell, cell, bold); err != nil {
				return fmt.Errorf("style minutes label: %w", err)
			}
		}
	}
	if err := f.SetColWidth(SheetMinutes, "A", "A", 20); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetColWidth(SheetMinutes, "B", "B", 80)
}

func appendTaskBlock(rows [][]any, title string, tasks []domain.MinutesTask) [][]any {
	rows = append(rows, []any{title, "Descripción", "Responsable", "Fecha compromiso"})
	for _, task := range tasks {
		rows = append(rows, []any{task.ID, task.Description, task.Owner, task.DueDate})
	}
	return rows
}

func writeTasksSheet(f *excelize.File, bold int, tasks []domain.Task) error {
	header := []any{"ID", "Tipo", "Descripción", "Responsable", "Estado", "Fecha compromiso"}
	if err := setRow(f, SheetTasks, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetTasks, "A1", "F1", bold); err != nil {
		return fmt.Errorf("style tasks header: %w", err)
	}
	for i, task := range tasks {
		row := []any{task.TaskID, string(task.Type), task.Description, task.Owner, string(task.State), task.DueDate}
		if err := setRow(f, SheetTasks, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetTasks, "C", "C", 60)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
