package models

import (
	"time"
)

// PairSummary counts the objects of one BaseDirPair
type PairSummary struct {
	LeftRoot  string
	RightRoot string

	Files    int
	Symlinks int
	Dirs     int
	Inactive int

	// Categories counts active and inactive objects per category
	Categories map[Category]int

	// BytesLeft and BytesRight sum the sizes of active files per side
	BytesLeft  uint64
	BytesRight uint64
}

// Statistics holds the outcome metrics of a comparison run
type Statistics struct {
	RunID     string
	StartTime time.Time
	Duration  time.Duration

	// BytesCompared is the number of bytes read during content comparison
	BytesCompared int64

	Pairs []PairSummary
}

// Summarize counts the objects of a single pair
func Summarize(pair *BaseDirPair) PairSummary {
	s := PairSummary{
		LeftRoot:   pair.LeftRoot,
		RightRoot:  pair.RightRoot,
		Categories: make(map[Category]int),
	}

	pair.Tree.Walk(func(id NodeID, n *Node) bool {
		switch n.Kind {
		case KindFile:
			s.Files++
			if n.Active {
				s.BytesLeft += n.Left.Size
				s.BytesRight += n.Right.Size
			}
		case KindSymlink:
			s.Symlinks++
		case KindDir:
			s.Dirs++
		}
		if !n.Active {
			s.Inactive++
		}
		s.Categories[n.Category]++
		return true
	})

	return s
}

// Total sums the category counts over all pairs
func (s *Statistics) Total() map[Category]int {
	total := make(map[Category]int)
	for _, p := range s.Pairs {
		for cat, n := range p.Categories {
			total[cat] += n
		}
	}
	return total
}
