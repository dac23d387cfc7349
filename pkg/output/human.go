package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/sdejongh/dircompare/pkg/models"
)

// HumanFormatter formats reports in human-readable format
type HumanFormatter struct {
	colorize bool
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter(colorize bool) *HumanFormatter {
	return &HumanFormatter{colorize: colorize}
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

var categoryLabels = map[models.Category]string{
	models.FileEqual:             "Equal",
	models.FileLeftSideOnly:      "Left only",
	models.FileRightSideOnly:     "Right only",
	models.FileLeftNewer:         "Left newer",
	models.FileRightNewer:        "Right newer",
	models.FileDifferentContent:  "Different",
	models.FileDifferentMetadata: "Metadata differs",
	models.FileConflict:          "Conflict",
}

var syncSymbols = map[models.SyncDirection]string{
	models.SyncLeft:  "<-",
	models.SyncRight: "->",
	models.SyncNone:  "==",
}

func (f *HumanFormatter) categoryColor(c models.Category) *color.Color {
	var attr color.Attribute
	switch c {
	case models.FileEqual:
		attr = color.FgGreen
	case models.FileLeftSideOnly, models.FileLeftNewer:
		attr = color.FgCyan
	case models.FileRightSideOnly, models.FileRightNewer:
		attr = color.FgBlue
	case models.FileDifferentContent, models.FileDifferentMetadata:
		attr = color.FgYellow
	default:
		attr = color.FgRed
	}
	col := color.New(attr)
	if f.colorize {
		col.EnableColor()
	} else {
		col.DisableColor()
	}
	return col
}

// Write renders the summary of every pair followed by its differences
func (f *HumanFormatter) Write(w io.Writer, report *Report) error {
	bold := color.New(color.Bold)
	if f.colorize {
		bold.EnableColor()
	} else {
		bold.DisableColor()
	}

	fmt.Fprintf(w, "Comparison completed in %s\n", formatDuration(report.Duration))
	if report.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
	}
	if report.BytesCompared > 0 {
		fmt.Fprintf(w, "Content compared: %s\n", formatBytes(report.BytesCompared))
	}

	for i, p := range report.Pairs {
		fmt.Fprintf(w, "\n")
		label := fmt.Sprintf("Pair %d: %s <-> %s (%s)", i+1, displayRoot(p.Left, p.LeftExists), displayRoot(p.Right, p.RightExists), p.Variant)
		bold.Fprintln(w, label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))

		s := p.Summary
		fmt.Fprintf(w, "  Objects:  %d files, %d symlinks, %d dirs (%d excluded)\n", s.Files, s.Symlinks, s.Dirs, s.Inactive)
		fmt.Fprintf(w, "  Size:     %s left, %s right\n", formatBytes(int64(s.BytesLeft)), formatBytes(int64(s.BytesRight)))
		for _, cat := range models.AllCategories {
			if n := s.Categories[cat]; n > 0 {
				fmt.Fprintf(w, "  %-17s %s\n", categoryLabels[cat]+":", f.categoryColor(cat).Sprint(n))
			}
		}

		if len(p.Differences) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n  Differences:\n")
		for _, d := range p.Differences {
			f.writeDifference(w, d)
		}
	}
	return nil
}

func (f *HumanFormatter) writeDifference(w io.Writer, d Difference) {
	sym := syncSymbols[d.SyncDir]
	if sym == "" {
		sym = "  "
	}
	path := d.Path
	if d.Kind == models.KindDir {
		path += "/"
	}
	excluded := ""
	if !d.Active {
		excluded = " [excluded]"
	}
	fmt.Fprintf(w, "    %s %-17s %s%s\n", sym, f.categoryColor(d.Category).Sprint(categoryLabels[d.Category]), path, excluded)
	if d.Description != "" {
		fmt.Fprintf(w, "         %s\n", d.Description)
	}
}

func displayRoot(root string, exists bool) string {
	switch {
	case root == "":
		return "(none)"
	case !exists:
		return root + " (missing)"
	default:
		return root
	}
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
