package output

import (
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/dircompare/pkg/models"
)

// Report is the printable outcome of a comparison run
type Report struct {
	RunID         string
	StartTime     time.Time
	Duration      time.Duration
	BytesCompared int64
	Pairs         []PairReport
}

// PairReport describes one folder pair
type PairReport struct {
	Left        string
	Right       string
	LeftExists  bool
	RightExists bool
	Variant     models.CompareVariant
	Summary     models.PairSummary

	// Differences lists every object that is not equal
	Differences []Difference
}

// Difference is one non-equal object of a pair
type Difference struct {
	Path        string
	Kind        models.ObjectKind
	Category    models.Category
	Description string
	Active      bool
	SyncDir     models.SyncDirection
	Left        models.SideInfo
	Right       models.SideInfo
}

// BuildReport collects the differences of every pair. Equal objects are
// only counted.
func BuildReport(result models.FolderComparison, stats *models.Statistics) *Report {
	r := &Report{}
	if stats != nil {
		r.RunID = stats.RunID
		r.StartTime = stats.StartTime
		r.Duration = stats.Duration
		r.BytesCompared = stats.BytesCompared
	}

	for i, pair := range result {
		pr := PairReport{
			Left:        pair.LeftRoot,
			Right:       pair.RightRoot,
			LeftExists:  pair.LeftExists,
			RightExists: pair.RightExists,
			Variant:     pair.Variant,
		}
		if stats != nil && i < len(stats.Pairs) {
			pr.Summary = stats.Pairs[i]
		} else {
			pr.Summary = models.Summarize(pair)
		}

		pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
			if n.Category == models.FileEqual {
				return true
			}
			pr.Differences = append(pr.Differences, Difference{
				Path:        pair.Tree.RelativePath(id),
				Kind:        n.Kind,
				Category:    n.Category,
				Description: n.Description,
				Active:      n.Active,
				SyncDir:     n.SyncDir,
				Left:        n.Left,
				Right:       n.Right,
			})
			// One-sided directories stand for their whole subtree
			return n.Kind != models.KindDir || n.BothSides()
		})
		r.Pairs = append(r.Pairs, pr)
	}
	return r
}

// Total sums the category counts over all pairs
func (r *Report) Total() map[models.Category]int {
	total := make(map[models.Category]int)
	for _, p := range r.Pairs {
		for cat, n := range p.Summary.Categories {
			total[cat] += n
		}
	}
	return total
}

// Formatter renders a report
type Formatter interface {
	// Write renders report to w
	Write(w io.Writer, report *Report) error

	// Name returns the formatter name
	Name() string
}

// NewFormatter returns the formatter for "human" or "json"
func NewFormatter(format string, colorize bool) (Formatter, error) {
	switch format {
	case "", "human":
		return NewHumanFormatter(colorize), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
