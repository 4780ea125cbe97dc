package hunk

// splitOne implements §4.1 rule 7: exactly one stored range H
// intersects the incoming hunk. Returns the replacement fragments and
// the index within them of the synthesized incoming range.
func splitOne(path string, H HunkRange, h DiffHunk, shiftedOldStart int, newRange HunkRange) ([]HunkRange, int, error) {
	oldEnd := shiftedOldStart + h.OldLines

	covered := shiftedOldStart <= H.Start && oldEnd >= H.end()
	if covered {
		return []HunkRange{newRange}, 0, nil
	}

	contained := H.Start <= shiftedOldStart && H.end() >= oldEnd
	if contained {
		return splitContained(path, H, h, shiftedOldStart, newRange)
	}

	// Partial overlap: the incoming hunk overlaps one edge of H.
	if shiftedOldStart <= H.Start {
		// Incoming covers H's left edge; H's remainder survives on
		// the right.
		bottomLines, err := trimmedBottomLines(path, H.end(), oldEnd, h, shiftedOldStart)
		if err != nil {
			return nil, 0, err
		}
		var frags []HunkRange
		frags = append(frags, newRange)
		if bottomLines > 0 {
			frags = append(frags, HunkRange{
				ChangeType: H.ChangeType, StackID: H.StackID, CommitID: H.CommitID,
				Start: newRange.end(), Lines: bottomLines,
			})
		}
		return frags, 0, nil
	}

	// Incoming covers H's right edge; H's remainder survives on the
	// left.
	topLines, err := subNonNeg(path, shiftedOldStart, H.Start)
	if err != nil {
		return nil, 0, err
	}
	var frags []HunkRange
	if topLines > 0 {
		frags = append(frags, HunkRange{
			ChangeType: H.ChangeType, StackID: H.StackID, CommitID: H.CommitID,
			Start: H.Start, Lines: topLines,
		})
	}
	frags = append(frags, newRange)
	return frags, len(frags) - 1, nil
}

// splitContained handles the incoming hunk landing entirely inside H,
// splitting it into (top, incoming, bottom).
func splitContained(path string, H HunkRange, h DiffHunk, shiftedOldStart int, newRange HunkRange) ([]HunkRange, int, error) {
	topLines, err := subNonNeg(path, h.NewStart, H.Start)
	if err != nil {
		return nil, 0, err
	}

	oldEnd := shiftedOldStart + h.OldLines
	bottomLines, err := trimmedBottomLines(path, H.end(), oldEnd, h, shiftedOldStart)
	if err != nil {
		return nil, 0, err
	}

	var frags []HunkRange
	if topLines > 0 {
		frags = append(frags, HunkRange{
			ChangeType: H.ChangeType, StackID: H.StackID, CommitID: H.CommitID,
			Start: H.Start, Lines: topLines,
		})
	}
	interest := len(frags)
	frags = append(frags, newRange)
	if bottomLines > 0 {
		frags = append(frags, HunkRange{
			ChangeType: H.ChangeType, StackID: H.StackID, CommitID: H.CommitID,
			Start: newRange.end(), Lines: bottomLines,
		})
	}
	return frags, interest, nil
}

// trimmedBottomLines computes the length of a range's surviving bottom
// fragment after an incoming hunk overwrites its top, applying the
// pure-addition / pure-deletion adjustment from §4.1: an insertion or
// deletion exactly at a point shifts the conceptual boundary by one
// line relative to a true range replacement.
func trimmedBottomLines(path string, end, oldEnd int, h DiffHunk, shiftedOldStart int) (int, error) {
	bottomLines, err := subNonNeg(path, end, oldEnd)
	if err != nil {
		return 0, err
	}
	if h.OldLines == 0 && h.NewLines > 0 && shiftedOldStart+1 == h.NewStart {
		bottomLines--
	} else if h.OldLines > 0 && h.NewLines == 0 && shiftedOldStart == h.NewStart+1 {
		bottomLines++
	}
	return bottomLines, nil
}

// splitPair implements §4.1 rule 8: multiple intersections. Every
// intermediate range is fully overwritten; only trimmed fragments of
// the first and last surviving ranges remain, using the same
// geometry as the single-intersection cases applied to the pair.
func splitPair(path string, first, last HunkRange, h DiffHunk, shiftedOldStart int, newRange HunkRange) ([]HunkRange, int, error) {
	var frags []HunkRange

	if shiftedOldStart > first.Start {
		topLines, err := subNonNeg(path, shiftedOldStart, first.Start)
		if err != nil {
			return nil, 0, err
		}
		if topLines > 0 {
			frags = append(frags, HunkRange{
				ChangeType: first.ChangeType, StackID: first.StackID, CommitID: first.CommitID,
				Start: first.Start, Lines: topLines,
			})
		}
	}

	interest := len(frags)
	frags = append(frags, newRange)

	oldEnd := shiftedOldStart + h.OldLines
	if last.end() > oldEnd {
		bottomLines, err := trimmedBottomLines(path, last.end(), oldEnd, h, shiftedOldStart)
		if err != nil {
			return nil, 0, err
		}
		if bottomLines > 0 {
			frags = append(frags, HunkRange{
				ChangeType: last.ChangeType, StackID: last.StackID, CommitID: last.CommitID,
				Start: newRange.end(), Lines: bottomLines,
			})
		}
	}

	return frags, interest, nil
}
