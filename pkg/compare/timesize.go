package compare

import (
	"fmt"
	"time"

	"github.com/sdejongh/dircompare/pkg/models"
)

// TimeResult is the outcome of comparing two modification times
type TimeResult int

const (
	TimeEqual TimeResult = iota
	TimeLeftNewer
	TimeRightNewer
	TimeLeftInvalid
	TimeRightInvalid
)

// InvalidTimeMargin is how far into the future a modification time may lie
// before it is treated as invalid
const InvalidTimeMargin = 365 * 24 * time.Hour

// SameFileTime reports whether l and r are within tolerance seconds of each
// other, directly or after shifting by one of the given whole minute offsets.
func SameFileTime(l, r, tolerance int64, shiftMinutes []int) bool {
	diff := l - r
	if diff < 0 {
		diff = -diff
	}
	if diff <= tolerance {
		return true
	}
	for _, m := range shiftMinutes {
		shift := int64(m) * 60
		if shift < 0 {
			shift = -shift
		}
		d := diff - shift
		if d < 0 {
			d = -d
		}
		if d <= tolerance {
			return true
		}
	}
	return false
}

// CompareFileTimes orders two modification times. Times before the epoch or
// later than invalidAfter are reported as invalid unless both are equal.
func CompareFileTimes(l, r, tolerance int64, shiftMinutes []int, invalidAfter int64) TimeResult {
	if SameFileTime(l, r, tolerance, shiftMinutes) {
		return TimeEqual
	}
	if l < 0 || l > invalidAfter {
		return TimeLeftInvalid
	}
	if r < 0 || r > invalidAfter {
		return TimeRightInvalid
	}
	if l < r {
		return TimeRightNewer
	}
	return TimeLeftNewer
}

func formatTime(t int64) string {
	return time.Unix(t, 0).UTC().Format("2006-01-02 15:04:05")
}

func describeInvalidTime(side string, t int64) string {
	return fmt.Sprintf("Item has an invalid modification time on the %s side: %s", side, formatTime(t))
}

func describeTimeDiff(l, r int64) string {
	return fmt.Sprintf("Items differ in modification time: %s <-> %s", formatTime(l), formatTime(r))
}

const describeSizeConflict = "Files have the same date but a different size"

// CategorizeByTimeSize assigns the category of a both-sides file or symlink
// from its modification times. Files with equal times must also agree on size.
func CategorizeByTimeSize(n *models.Node, pair *models.BaseDirPair, invalidAfter int64) {
	checkSize := n.Kind == models.KindFile
	n.Description = ""
	switch CompareFileTimes(n.Left.ModTime, n.Right.ModTime, pair.FileTimeTolerance, pair.IgnoreTimeShiftMinutes, invalidAfter) {
	case TimeEqual:
		switch {
		case checkSize && n.Left.Size != n.Right.Size:
			n.Category = models.FileConflict
			n.Description = describeSizeConflict
		case n.Left.ShortName != n.Right.ShortName:
			n.Category = models.FileDifferentMetadata
			n.Description = models.DescribeCaseDiff(n.Left.ShortName, n.Right.ShortName)
		default:
			n.Category = models.FileEqual
		}
	case TimeLeftNewer:
		n.Category = models.FileLeftNewer
	case TimeRightNewer:
		n.Category = models.FileRightNewer
	case TimeLeftInvalid:
		n.Category = models.FileConflict
		n.Description = describeInvalidTime("left", n.Left.ModTime)
	case TimeRightInvalid:
		n.Category = models.FileConflict
		n.Description = describeInvalidTime("right", n.Right.ModTime)
	}
}
