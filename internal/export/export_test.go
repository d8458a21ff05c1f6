package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/timesheet/internal/model"
)

func sampleSheet() Sheet {
	alpha := &model.Project{ID: "p1", Name: "Project Alpha"}
	beta := &model.Project{ID: "p2", Name: "Project Beta"}
	tid := "t1"

	return Sheet{
		User: "ada@example.com",
		From: "2024-06-10",
		To:   "2024-06-16",
		Entries: []model.TimeEntry{
			{
				ID: "e1", ProjectID: "p1", Project: alpha,
				Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", Hours: 1,
				Description: "worked on feature",
			},
			{
				ID: "e2", ProjectID: "p2", Project: beta, TaskID: &tid,
				Task: &model.Task{ID: "t1", ProjectID: "p2", Name: "Review"},
				Date: "2024-06-10", StartTime: "13:00", EndTime: "13:30", Hours: 0.5,
			},
			{
				ID: "e3", ProjectID: "p1", Project: alpha,
				Date: "2024-06-12", StartTime: "08:00", EndTime: "10:15", Hours: 2.25,
			},
		},
	}
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")

	err := ToCSV(sampleSheet(), path)
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	// header + 3 data rows
	if len(records) != 4 {
		t.Fatalf("expected 4 rows (1 header + 3 data), got %d", len(records))
	}

	header := records[0]
	expectedHeader := []string{"Date", "Project", "Task", "Start", "End", "Hours", "Duration", "Description"}
	for i, h := range expectedHeader {
		if header[i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, header[i], h)
		}
	}

	row := records[1]
	if row[0] != "2024-06-10" {
		t.Fatalf("Date = %q, want 2024-06-10", row[0])
	}
	if row[1] != "Project Alpha" {
		t.Fatalf("Project = %q, want Project Alpha", row[1])
	}
	if row[5] != "1.00" {
		t.Fatalf("Hours = %q, want 1.00", row[5])
	}
	if row[6] != "01:00" {
		t.Fatalf("Duration = %q, want 01:00", row[6])
	}
	if row[7] != "worked on feature" {
		t.Fatalf("Description = %q, want 'worked on feature'", row[7])
	}

	if records[2][2] != "Review" {
		t.Fatalf("Task = %q, want Review", records[2][2])
	}
	if records[1][2] != "" {
		t.Fatalf("entry without task should have empty task, got %q", records[1][2])
	}
	if records[3][6] != "02:15" {
		t.Fatalf("Duration = %q, want 02:15", records[3][6])
	}
}

func TestToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	err := ToCSV(Sheet{}, path)
	if err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	r := csv.NewReader(f)
	records, _ := r.ReadAll()
	if len(records) != 1 {
		t.Fatalf("expected 1 row (header only), got %d", len(records))
	}
}

func TestToCSVUnknownProject(t *testing.T) {
	sheet := Sheet{Entries: []model.TimeEntry{
		{ID: "e1", ProjectID: "gone", Date: "2024-06-10", StartTime: "09:00", EndTime: "09:01"},
	}}
	path := filepath.Join(t.TempDir(), "unknown.csv")

	err := ToCSV(sheet, path)
	if err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	r := csv.NewReader(f)
	records, _ := r.ReadAll()
	if records[1][1] != "Unknown" {
		t.Fatalf("expected 'Unknown' for missing project, got %q", records[1][1])
	}
}

func TestToCSVBadPath(t *testing.T) {
	err := ToCSV(Sheet{}, "/nonexistent/dir/file.csv")
	if err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToCSVSpecialCharacters(t *testing.T) {
	sheet := Sheet{Entries: []model.TimeEntry{
		{
			ID:          "e1",
			Project:     &model.Project{Name: `Project "Special"`},
			Date:        "2024-06-10",
			StartTime:   "09:00",
			EndTime:     "09:01",
			Description: `notes with "quotes" and, commas`,
		},
	}}
	path := filepath.Join(t.TempDir(), "special.csv")

	err := ToCSV(sheet, path)
	if err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("CSV should be valid even with special chars: %v", err)
	}
	if records[1][1] != `Project "Special"` {
		t.Fatalf("project name mangled: %q", records[1][1])
	}
	if records[1][7] != `notes with "quotes" and, commas` {
		t.Fatalf("description mangled: %q", records[1][7])
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")

	err := ToJSON(sampleSheet(), path)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var result sheetExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if result.Count != 3 {
		t.Fatalf("count = %d, want 3", result.Count)
	}
	if result.From != "2024-06-10" || result.To != "2024-06-16" {
		t.Fatalf("range = %s..%s", result.From, result.To)
	}
	if result.TotalHours != 3.75 {
		t.Fatalf("total_hours = %v, want 3.75", result.TotalHours)
	}
	if len(result.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(result.Days))
	}
	if result.Days[0].Date != "2024-06-10" || result.Days[0].Hours != 1.5 {
		t.Fatalf("day[0] = %+v, want 2024-06-10 1.5h", result.Days[0])
	}

	e := result.Entries[1]
	if e.Project != "Project Beta" {
		t.Fatalf("Project = %q, want Project Beta", e.Project)
	}
	if e.Task != "Review" {
		t.Fatalf("Task = %q, want Review", e.Task)
	}
	if e.Duration != "00:30" {
		t.Fatalf("Duration = %q, want 00:30", e.Duration)
	}

	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not valid RFC3339: %q", result.ExportedAt)
	}
}

func TestToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	err := ToJSON(Sheet{}, path)
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var result sheetExport
	json.Unmarshal(data, &result)

	if result.Count != 0 {
		t.Fatalf("count = %d, want 0", result.Count)
	}
	if result.Entries != nil {
		t.Fatal("entries should be nil/null for empty export")
	}
}

func TestToJSONBadPath(t *testing.T) {
	err := ToJSON(Sheet{}, "/nonexistent/dir/file.json")
	if err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToJSONPrettyPrinted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretty.json")
	ToJSON(Sheet{}, path)

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n") {
		t.Fatal("JSON should be pretty-printed with newlines")
	}
	if !strings.Contains(string(data), "  ") {
		t.Fatal("JSON should be indented with spaces")
	}
}

// ============================================================
// YAML
// ============================================================

func TestToYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")

	if err := ToYAML(sampleSheet(), path); err != nil {
		t.Fatalf("ToYAML: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var result sheetExport
	if err := yaml.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if result.User != "ada@example.com" {
		t.Fatalf("user = %q", result.User)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(result.Entries))
	}
	if result.Entries[2].Hours != 2.25 {
		t.Fatalf("hours = %v, want 2.25", result.Entries[2].Hours)
	}
	if !strings.Contains(string(data), "total_hours: 3.75") {
		t.Fatalf("expected snake_case keys, got:\n%s", data)
	}
}

func TestToYAMLBadPath(t *testing.T) {
	if err := ToYAML(Sheet{}, "/nonexistent/dir/file.yaml"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

// ============================================================
// Format dispatch
// ============================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", CSV},
		{".json", JSON},
		{"YAML", YAML},
		{"yml", YAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("expected error for pdf")
	}
}

func TestWriteTo(t *testing.T) {
	dir := t.TempDir()
	sheet := sampleSheet()
	for _, f := range Formats {
		path, err := WriteTo(sheet, f, dir)
		if err != nil {
			t.Fatalf("WriteTo(%s): %v", f, err)
		}
		want := filepath.Join(dir, "timesheet_2024-06-10_2024-06-16."+string(f))
		if path != want {
			t.Fatalf("path = %q, want %q", path, want)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatal(err)
		}
	}
	if err := Write(sheet, Format("pdf"), filepath.Join(dir, "x.pdf")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

// ============================================================
// formatHours (internal helper)
// ============================================================

func TestFormatHours(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0, "00:00"},
		{0.5, "00:30"},
		{1, "01:00"},
		{1.5, "01:30"},
		{2.25, "02:15"},
		{23 + 59.0/60, "23:59"},
		{-1, "-01:00"},
	}

	for _, tt := range tests {
		got := formatHours(tt.hours)
		if got != tt.want {
			t.Errorf("formatHours(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
