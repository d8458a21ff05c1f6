package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/timesheet/internal/model"
)

// Sheet is one user's entries over an inclusive date range, usually a
// week.
type Sheet struct {
	User    string
	From    string
	To      string
	Entries []model.TimeEntry
}

type sheetExport struct {
	ExportedAt string        `json:"exported_at" yaml:"exported_at"`
	User       string        `json:"user,omitempty" yaml:"user,omitempty"`
	From       string        `json:"from" yaml:"from"`
	To         string        `json:"to" yaml:"to"`
	Count      int           `json:"count" yaml:"count"`
	TotalHours float64       `json:"total_hours" yaml:"total_hours"`
	Days       []dayExport   `json:"days" yaml:"days"`
	Entries    []entryExport `json:"entries" yaml:"entries"`
}

type dayExport struct {
	Date  string  `json:"date" yaml:"date"`
	Hours float64 `json:"hours" yaml:"hours"`
}

type entryExport struct {
	ID          string  `json:"id" yaml:"id"`
	Date        string  `json:"date" yaml:"date"`
	Project     string  `json:"project" yaml:"project"`
	ProjectID   string  `json:"project_id" yaml:"project_id"`
	Task        string  `json:"task,omitempty" yaml:"task,omitempty"`
	StartTime   string  `json:"start_time" yaml:"start_time"`
	EndTime     string  `json:"end_time" yaml:"end_time"`
	Hours       float64 `json:"hours" yaml:"hours"`
	Duration    string  `json:"duration" yaml:"duration"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// build flattens the sheet. Days lists every date that has entries, in
// entry order.
func build(sheet Sheet) sheetExport {
	out := sheetExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		User:       sheet.User,
		From:       sheet.From,
		To:         sheet.To,
		Count:      len(sheet.Entries),
	}

	dayIndex := map[string]int{}
	for _, e := range sheet.Entries {
		out.TotalHours += e.Hours
		i, ok := dayIndex[e.Date]
		if !ok {
			i = len(out.Days)
			dayIndex[e.Date] = i
			out.Days = append(out.Days, dayExport{Date: e.Date})
		}
		out.Days[i].Hours += e.Hours

		out.Entries = append(out.Entries, entryExport{
			ID:          e.ID,
			Date:        e.Date,
			Project:     e.ProjectName(),
			ProjectID:   e.ProjectID,
			Task:        e.TaskName(),
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Hours:       e.Hours,
			Duration:    formatHours(e.Hours),
			Description: e.Description,
		})
	}
	return out
}

func ToJSON(sheet Sheet, path string) error {
	data, err := json.MarshalIndent(build(sheet), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
