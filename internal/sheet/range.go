// Package sheet models the compilation target: sheets, rectangular ranges,
// cross-sheet references, and the four workbook mutation operations the
// translator emits. Coordinates are 0-indexed internally and converted to
// 1-indexed A1 notation only at the formula boundary.
package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Range is a rectangular cell region with 0-indexed, inclusive bounds.
type Range struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	RowEnd int `json:"row_end"`
	ColEnd int `json:"col_end"`
}

// NewRange creates a Range covering rows [row, rowEnd] and columns
// [col, colEnd], all 0-indexed inclusive.
func NewRange(row, col, rowEnd, colEnd int) (Range, error) {
	if row < 0 || col < 0 {
		return Range{}, fmt.Errorf("range start must be non-negative, got (%d, %d)", row, col)
	}
	if rowEnd < row || colEnd < col {
		return Range{}, fmt.Errorf("range end (%d, %d) precedes start (%d, %d)", rowEnd, colEnd, row, col)
	}
	return Range{Row: row, Col: col, RowEnd: rowEnd, ColEnd: colEnd}, nil
}

// Cell creates a single-cell Range.
func Cell(row, col int) Range {
	return Range{Row: row, Col: col, RowEnd: row, ColEnd: col}
}

// ColToLetter converts a 0-indexed column number to its A1 letter form
// (0 = A, 25 = Z, 26 = AA).
func ColToLetter(col int) string {
	n := col + 1
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// LetterToCol converts A1 column letters back to a 0-indexed column number.
func LetterToCol(letters string) int {
	n := 0
	for _, c := range strings.ToUpper(letters) {
		n = n*26 + int(c-'A'+1)
	}
	return n - 1
}

var cellPattern = regexp.MustCompile(`^([A-Z]+)(\d+)$`)

// FromA1 parses 1-indexed A1 notation (a single cell or a start:end pair)
// into a 0-indexed Range.
func FromA1(notation string) (Range, error) {
	notation = strings.TrimSpace(notation)
	if notation == "" {
		return Range{}, fmt.Errorf("empty range notation")
	}
	parts := strings.Split(notation, ":")
	if len(parts) > 2 {
		return Range{}, fmt.Errorf("invalid range notation: %s", notation)
	}
	startRow, startCol, err := parseCell(parts[0])
	if err != nil {
		return Range{}, err
	}
	if len(parts) == 1 {
		return Cell(startRow, startCol), nil
	}
	endRow, endCol, err := parseCell(parts[1])
	if err != nil {
		return Range{}, err
	}
	return NewRange(startRow, startCol, endRow, endCol)
}

func parseCell(cell string) (row, col int, err error) {
	m := cellPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(cell)))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid cell notation: %s", cell)
	}
	rowOneIndexed, err := strconv.Atoi(m[2])
	if err != nil || rowOneIndexed < 1 {
		return 0, 0, fmt.Errorf("invalid cell notation: %s", cell)
	}
	return rowOneIndexed - 1, LetterToCol(m[1]), nil
}

// A1 renders the range in 1-indexed A1 notation. Single cells render without
// the colon.
func (r Range) A1() string {
	start := fmt.Sprintf("%s%d", ColToLetter(r.Col), r.Row+1)
	if r.Row == r.RowEnd && r.Col == r.ColEnd {
		return start
	}
	return fmt.Sprintf("%s:%s%d", start, ColToLetter(r.ColEnd), r.RowEnd+1)
}

// Rows returns the number of rows the range spans.
func (r Range) Rows() int { return r.RowEnd - r.Row + 1 }

// Cols returns the number of columns the range spans.
func (r Range) Cols() int { return r.ColEnd - r.Col + 1 }

// Intersect returns the overlap of two ranges; ok is false when they are
// disjoint.
func (r Range) Intersect(other Range) (Range, bool) {
	out := Range{
		Row:    max(r.Row, other.Row),
		Col:    max(r.Col, other.Col),
		RowEnd: min(r.RowEnd, other.RowEnd),
		ColEnd: min(r.ColEnd, other.ColEnd),
	}
	if out.Row > out.RowEnd || out.Col > out.ColEnd {
		return Range{}, false
	}
	return out, true
}

// Union returns the bounding box of two ranges.
func (r Range) Union(other Range) Range {
	return Range{
		Row:    min(r.Row, other.Row),
		Col:    min(r.Col, other.Col),
		RowEnd: max(r.RowEnd, other.RowEnd),
		ColEnd: max(r.ColEnd, other.ColEnd),
	}
}

// Offset shifts the range by the given deltas.
func (r Range) Offset(rows, cols int) (Range, error) {
	return NewRange(r.Row+rows, r.Col+cols, r.RowEnd+rows, r.ColEnd+cols)
}

// Expand grows the range end by the given amounts.
func (r Range) Expand(rows, cols int) (Range, error) {
	return NewRange(r.Row, r.Col, r.RowEnd+rows, r.ColEnd+cols)
}

// Ref is a range reference usable inside a formula, optionally qualified with
// a sheet name for cross-sheet references.
type Ref struct {
	Sheet string
	Range Range
}

// String renders the reference in formula syntax, quoting sheet names that
// contain characters the dialect requires quoting for.
func (ref Ref) String() string {
	a1 := ref.Range.A1()
	if ref.Sheet == "" {
		return a1
	}
	if strings.ContainsAny(ref.Sheet, " !'") {
		return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(ref.Sheet, "'", "''"), a1)
	}
	return fmt.Sprintf("%s!%s", ref.Sheet, a1)
}
