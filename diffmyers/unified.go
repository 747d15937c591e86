package diffmyers

import (
	"fmt"
	"strings"
)

// Hunk is one contiguous block of an op stream padded by context lines on
// either side, ready to render as a unified-diff "@@ ... @@" block
// (spec.md §4.5).
type Hunk struct {
	AStart, ALen int
	BStart, BLen int
	Ops          []Op
}

// BuildHunks groups ops into hunks, padding each change region by up to
// context matching lines on either side; hunks separated by at most
// 2*context matching lines are merged into one (spec.md §4.6).
func BuildHunks(ops []Op, context int) []Hunk {
	if context < 0 {
		context = 0
	}

	var runs [][2]int // [start, end) indices into ops, each a maximal non-Match run
	i := 0
	for i < len(ops) {
		if ops[i].Type == Match {
			i++
			continue
		}
		start := i
		for i < len(ops) && ops[i].Type != Match {
			i++
		}
		runs = append(runs, [2]int{start, i})
	}
	if len(runs) == 0 {
		return nil
	}

	// Merge runs separated by <= 2*context matching ops.
	var merged [][2]int
	cur := runs[0]
	for _, r := range runs[1:] {
		gap := r[0] - cur[1]
		if gap <= 2*context {
			cur[1] = r[1]
		} else {
			merged = append(merged, cur)
			cur = r
		}
	}
	merged = append(merged, cur)

	hunks := make([]Hunk, 0, len(merged))
	for _, m := range merged {
		lo := m[0] - context
		if lo < 0 {
			lo = 0
		}
		hi := m[1] + context
		if hi > len(ops) {
			hi = len(ops)
		}
		hunks = append(hunks, hunkFromRange(ops[lo:hi]))
	}
	return hunks
}

func hunkFromRange(ops []Op) Hunk {
	h := Hunk{Ops: ops}
	aFirst, bFirst := -1, -1
	aLast, bLast := -1, -1
	for _, op := range ops {
		if op.ALine >= 0 {
			if aFirst < 0 {
				aFirst = op.ALine
			}
			aLast = op.ALine
		}
		if op.BLine >= 0 {
			if bFirst < 0 {
				bFirst = op.BLine
			}
			bLast = op.BLine
		}
	}

	if aFirst < 0 {
		h.AStart, h.ALen = 0, 0
	} else {
		h.AStart = aFirst + 1
		h.ALen = aLast - aFirst + 1
	}
	if bFirst < 0 {
		h.BStart, h.BLen = 0, 0
	} else {
		h.BStart = bFirst + 1
		h.BLen = bLast - bFirst + 1
	}
	return h
}

// header renders the "@@ -a,b +c,d @@" line, with the git convention that
// an empty side (a pure addition or pure deletion hunk) is printed as
// "-0,0" / "+0,0" (spec.md §4.5).
func (h Hunk) header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.AStart, h.ALen, h.BStart, h.BLen)
}

// FormatUnified renders hunks in unified-diff form, with fromFile/toFile
// as the "--- "/"+++ " header paths.
func FormatUnified(fromFile, toFile string, hunks []Hunk) string {
	if len(hunks) == 0 {
		return ""
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "--- %s\n", fromFile)
	fmt.Fprintf(&buf, "+++ %s\n", toFile)
	for _, h := range hunks {
		buf.WriteString(h.header())
		buf.WriteByte('\n')
		for _, op := range h.Ops {
			var prefix byte
			switch op.Type {
			case Match:
				prefix = ' '
			case Insert:
				prefix = '+'
			case Delete:
				prefix = '-'
			}
			buf.WriteByte(prefix)
			text := op.Text
			if !strings.HasSuffix(text, "\n") {
				text += "\n\\ No newline at end of file\n"
			}
			buf.WriteString(text)
		}
	}
	return buf.String()
}
