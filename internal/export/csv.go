package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

func ToCSV(sheet Sheet, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"Date", "Project", "Task", "Start", "End", "Hours", "Duration", "Description"}); err != nil {
		return err
	}

	for _, e := range sheet.Entries {
		row := []string{
			e.Date,
			e.ProjectName(),
			e.TaskName(),
			e.StartTime,
			e.EndTime,
			strconv.FormatFloat(e.Hours, 'f', 2, 64),
			formatHours(e.Hours),
			e.Description,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// formatHours renders fractional hours as HH:MM, rounded to the minute.
func formatHours(hours float64) string {
	mins := int64(hours*60 + 0.5)
	if hours < 0 {
		mins = int64(hours*60 - 0.5)
	}
	sign := ""
	if mins < 0 {
		sign = "-"
		mins = -mins
	}
	return fmt.Sprintf("%s%02d:%02d", sign, mins/60, mins%60)
}
