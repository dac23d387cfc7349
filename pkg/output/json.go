package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sdejongh/dircompare/pkg/models"
)

// JSONFormatter formats reports as JSON for automation and scripting
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

// JSONReportData represents the complete report
type JSONReportData struct {
	RunID         string         `json:"run_id,omitempty"`
	StartTime     string         `json:"start_time,omitempty"`
	Duration      string         `json:"duration"`
	DurationMs    int64          `json:"duration_ms"`
	BytesCompared int64          `json:"bytes_compared"`
	Totals        map[string]int `json:"totals"`
	Pairs         []JSONPairData `json:"pairs"`
}

// JSONPairData represents one folder pair
type JSONPairData struct {
	Left        string               `json:"left"`
	Right       string               `json:"right"`
	LeftExists  bool                 `json:"left_exists"`
	RightExists bool                 `json:"right_exists"`
	Compare     string               `json:"compare"`
	Stats       JSONStatsData        `json:"stats"`
	Differences []JSONDifferenceData `json:"differences,omitempty"`
}

// JSONStatsData represents the counts of one pair
type JSONStatsData struct {
	Files      int            `json:"files"`
	Symlinks   int            `json:"symlinks"`
	Dirs       int            `json:"dirs"`
	Inactive   int            `json:"inactive"`
	BytesLeft  uint64         `json:"bytes_left"`
	BytesRight uint64         `json:"bytes_right"`
	Categories map[string]int `json:"categories"`
}

// JSONDifferenceData represents a non-equal object
type JSONDifferenceData struct {
	Path          string            `json:"path"`
	Kind          string            `json:"kind"`
	Category      string            `json:"category"`
	Description   string            `json:"description,omitempty"`
	Active        bool              `json:"active"`
	SyncDirection string            `json:"sync_direction,omitempty"`
	Left          *JSONFileInfoData `json:"left,omitempty"`
	Right         *JSONFileInfoData `json:"right,omitempty"`
}

// JSONFileInfoData represents one side of an object
type JSONFileInfoData struct {
	Name    string `json:"name"`
	Size    uint64 `json:"size,omitempty"`
	ModTime string `json:"mod_time,omitempty"`
}

func sideData(kind models.ObjectKind, s models.SideInfo) *JSONFileInfoData {
	if !s.Exists {
		return nil
	}
	d := &JSONFileInfoData{Name: s.ShortName, Size: s.Size}
	if kind != models.KindDir {
		d.ModTime = time.Unix(s.ModTime, 0).UTC().Format(time.RFC3339)
	}
	return d
}

func categoryCounts(counts map[models.Category]int) map[string]int {
	out := make(map[string]int, len(counts))
	for cat, n := range counts {
		out[cat.String()] = n
	}
	return out
}

// Data converts report into its JSON representation
func (f *JSONFormatter) Data(report *Report) JSONReportData {
	data := JSONReportData{
		RunID:         report.RunID,
		Duration:      report.Duration.String(),
		DurationMs:    report.Duration.Milliseconds(),
		BytesCompared: report.BytesCompared,
		Totals:        categoryCounts(report.Total()),
		Pairs:         make([]JSONPairData, 0, len(report.Pairs)),
	}
	if !report.StartTime.IsZero() {
		data.StartTime = report.StartTime.Format(time.RFC3339)
	}

	for _, p := range report.Pairs {
		pd := JSONPairData{
			Left:        p.Left,
			Right:       p.Right,
			LeftExists:  p.LeftExists,
			RightExists: p.RightExists,
			Compare:     string(p.Variant),
			Stats: JSONStatsData{
				Files:      p.Summary.Files,
				Symlinks:   p.Summary.Symlinks,
				Dirs:       p.Summary.Dirs,
				Inactive:   p.Summary.Inactive,
				BytesLeft:  p.Summary.BytesLeft,
				BytesRight: p.Summary.BytesRight,
				Categories: categoryCounts(p.Summary.Categories),
			},
		}
		for _, d := range p.Differences {
			pd.Differences = append(pd.Differences, JSONDifferenceData{
				Path:          d.Path,
				Kind:          d.Kind.String(),
				Category:      d.Category.String(),
				Description:   d.Description,
				Active:        d.Active,
				SyncDirection: string(d.SyncDir),
				Left:          sideData(d.Kind, d.Left),
				Right:         sideData(d.Kind, d.Right),
			})
		}
		data.Pairs = append(data.Pairs, pd)
	}
	return data
}

// Write encodes report as indented JSON
func (f *JSONFormatter) Write(w io.Writer, report *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.Data(report))
}
