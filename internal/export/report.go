// Package export renders timeline sets as flat CSV reports for use in
// spreadsheets and downstream analysis tools.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

var reportHeader = []string{
	"line", "stamp_id", "tag", "label",
	"time_start", "time_finish", "duration_s",
	"labels", "time_events", "pos_x", "pos_y",
}

// GenerateCSV renders one row per stamp. Label and time-event IDs resolve to
// display names through the library; unknown IDs pass through raw so the
// report never loses data.
func GenerateCSV(lines []timeline.TimelineLine, lib *timeline.Library) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(reportHeader); err != nil {
		return "", err
	}
	for _, line := range lines {
		for _, st := range line.Stamps {
			tagName := st.Label
			if tag, ok := lib.TagByID(st.IDTag); ok {
				tagName = tag.Name
			}

			var posX, posY string
			if st.Position != nil {
				posX = fmt.Sprintf("%.4f", st.Position.X)
				posY = fmt.Sprintf("%.4f", st.Position.Y)
			}

			row := []string{
				line.Name,
				st.ID,
				tagName,
				st.Label,
				st.TimeStart,
				st.TimeFinish,
				fmt.Sprintf("%g", st.Duration()),
				strings.Join(labelNames(st.Labels, lib), "; "),
				strings.Join(eventNames(st.TimeEvents, lib), "; "),
				posX,
				posY,
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	return b.String(), w.Error()
}

// RowCount is the number of data rows GenerateCSV will emit for the set.
func RowCount(lines []timeline.TimelineLine) int {
	n := 0
	for _, line := range lines {
		n += len(line.Stamps)
	}
	return n
}

// WriteReport renders the CSV and writes it into dir under the video's
// report filename. The directory must already exist and pass validation.
func WriteReport(dir, videoID string, lines []timeline.TimelineLine, lib *timeline.Library) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}

	report, err := GenerateCSV(lines, lib)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ReportFilename(videoID))
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// ReportFilename builds a safe filename for a video's report.
func ReportFilename(videoID string) string {
	name := SanitizeName(videoID, 120)
	if name == "" {
		name = "timeline_report"
	}
	return name + ".csv"
}

func labelNames(ids []string, lib *timeline.Library) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if l, ok := lib.LabelByID(id); ok {
			names = append(names, l.Name)
		} else {
			names = append(names, id)
		}
	}
	return names
}

func eventNames(ids []string, lib *timeline.Library) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if e, ok := lib.TimeEventByID(id); ok {
			names = append(names, e.Name)
		} else {
			names = append(names, id)
		}
	}
	return names
}
