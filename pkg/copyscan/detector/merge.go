package detector

import "copyscan/pkg/models"

// MergeFrames collapses time-ordered active frames into coarse segments.
// A frame starting within mergeGap of the running interval's end extends it;
// anything farther closes the interval and starts a new one. Segments
// shorter than minDuration are dropped. Single left-to-right pass; a merged
// frame is never reconsidered.
func MergeFrames(frames []models.Frame, mergeGap, minDuration float64) []models.Segment {
	if len(frames) == 0 {
		return []models.Segment{}
	}

	var segments []models.Segment
	curStart, curEnd := frames[0].Start, frames[0].End

	for _, f := range frames[1:] {
		if f.Start-curEnd <= mergeGap {
			if f.End > curEnd {
				curEnd = f.End
			}
		} else {
			segments = append(segments, models.Segment{Start: curStart, End: curEnd})
			curStart, curEnd = f.Start, f.End
		}
	}
	segments = append(segments, models.Segment{Start: curStart, End: curEnd})

	kept := segments[:0]
	for _, s := range segments {
		if s.End-s.Start >= minDuration {
			kept = append(kept, s)
		}
	}
	return kept
}
