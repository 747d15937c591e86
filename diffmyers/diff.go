// Package diffmyers implements the line-level shortest-edit-script diff
// (spec.md §4.6) and its unified-format printer.
//
// The Myers shortest-edit-script search itself is delegated to
// github.com/sergi/go-diff/diffmatchpatch — the same dependency go-git's
// references.go and dolthub/dolt both pull in — using its
// DiffLinesToChars/DiffMain/DiffCharsToLines trick: each distinct line
// becomes one synthetic "character", so the character-level Myers engine
// diffmatchpatch already implements computes a line-level edit script for
// free. biogit only adapts the output: diffmatchpatch's three-way
// Equal/Insert/Delete op stream is converted here into the MATCH/INSERT/
// DELETE stream spec.md §4.6 names (carrying original A/B line indices,
// which diffmatchpatch's own type does not track), and the hunk/printer
// logic below is biogit's own.
package diffmyers

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// OpType classifies one line of the edit script.
type OpType int

const (
	Match OpType = iota
	Insert
	Delete
)

// Op is one line of the shortest edit script, with its index in whichever
// original sequence(s) it belongs to (-1 where not applicable).
type Op struct {
	Type  OpType
	ALine int // index into A; valid for Match and Delete
	BLine int // index into B; valid for Match and Insert
	Text  string
}

// SplitLines splits s into lines, each retaining its trailing "\n" except
// possibly the last (if s does not end in a newline). This is the line
// tokenization both Diff and the hunk printer operate on.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// Diff computes the shortest edit script turning aText into bText, as an
// ordered list of Match/Insert/Delete operations over lines.
func Diff(aText, bText string) []Op {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(aText, bText)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []Op
	aIdx, bIdx := 0, 0
	for _, d := range diffs {
		for _, line := range SplitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, Op{Type: Match, ALine: aIdx, BLine: bIdx, Text: line})
				aIdx++
				bIdx++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, Op{Type: Delete, ALine: aIdx, BLine: -1, Text: line})
				aIdx++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, Op{Type: Insert, ALine: -1, BLine: bIdx, Text: line})
				bIdx++
			}
		}
	}
	return ops
}

// Apply reconstructs B (as a single string) by walking the edit script's
// Match and Insert lines in order — the "diff soundness" testable
// property from spec.md §8.
func Apply(ops []Op) string {
	var buf strings.Builder
	for _, op := range ops {
		if op.Type == Match || op.Type == Insert {
			buf.WriteString(op.Text)
		}
	}
	return buf.String()
}
