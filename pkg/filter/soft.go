package filter

import (
	"time"

	"github.com/sdejongh/dircompare/pkg/models"
)

// SoftFilter deactivates files and symlinks by age and size
type SoftFilter struct {
	// MinModTime is the oldest accepted write time (Unix seconds); 0 disables the check
	MinModTime int64

	SizeMin uint64
	// SizeMax of 0 means unlimited
	SizeMax uint64
}

// NewSoftFilter builds a soft filter from the pair configuration relative to now
func NewSoftFilter(cfg models.FilterConfig, now time.Time) SoftFilter {
	sf := SoftFilter{SizeMin: cfg.SizeMin, SizeMax: cfg.SizeMax}
	if cfg.TimeSpan > 0 {
		sf.MinModTime = now.Add(-cfg.TimeSpan).Unix()
	}
	return sf
}

// IsNull reports whether the filter accepts everything
func (sf SoftFilter) IsNull() bool {
	return sf.MinModTime == 0 && sf.SizeMin == 0 && sf.SizeMax == 0
}

// PassFile checks a file's write time and size
func (sf SoftFilter) PassFile(modTime int64, size uint64) bool {
	if size < sf.SizeMin {
		return false
	}
	if sf.SizeMax > 0 && size > sf.SizeMax {
		return false
	}
	return sf.PassSymlink(modTime)
}

// PassSymlink checks a symlink's write time; links have no size
func (sf SoftFilter) PassSymlink(modTime int64) bool {
	return sf.MinModTime == 0 || modTime >= sf.MinModTime
}

func (sf SoftFilter) passSide(kind models.ObjectKind, side models.SideInfo) bool {
	if !side.Exists {
		return false
	}
	if kind == models.KindSymlink {
		return sf.PassSymlink(side.ModTime)
	}
	return sf.PassFile(side.ModTime, side.Size)
}
