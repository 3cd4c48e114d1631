package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColToLetter(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColToLetter(tt.col))
		assert.Equal(t, tt.col, LetterToCol(tt.want))
	}
}

func TestA1RoundTrip(t *testing.T) {
	tests := []string{"A1", "B2", "A1:B3", "C5:AA70", "ZZ100"}
	for _, notation := range tests {
		t.Run(notation, func(t *testing.T) {
			r, err := FromA1(notation)
			require.NoError(t, err)
			assert.Equal(t, notation, r.A1())
		})
	}
}

func TestSingleCellRendersWithoutColon(t *testing.T) {
	assert.Equal(t, "A2", Cell(1, 0).A1())

	r, err := FromA1("B3:B3")
	require.NoError(t, err)
	assert.Equal(t, "B3", r.A1())
}

func TestFromA1Invalid(t *testing.T) {
	for _, notation := range []string{"", "1A", "A0", "A1:B2:C3", "A1:"} {
		_, err := FromA1(notation)
		assert.Error(t, err, notation)
	}
}

func TestNewRangeValidation(t *testing.T) {
	_, err := NewRange(-1, 0, 0, 0)
	assert.Error(t, err)

	_, err = NewRange(2, 0, 1, 0)
	assert.Error(t, err)

	r, err := NewRange(0, 0, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Rows())
	assert.Equal(t, 2, r.Cols())
}

func TestIntersect(t *testing.T) {
	a := Range{Row: 0, Col: 0, RowEnd: 4, ColEnd: 4}
	b := Range{Row: 2, Col: 3, RowEnd: 8, ColEnd: 8}

	got, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, Range{Row: 2, Col: 3, RowEnd: 4, ColEnd: 4}, got)

	_, ok = a.Intersect(Range{Row: 5, Col: 0, RowEnd: 6, ColEnd: 4})
	assert.False(t, ok)
}

func TestUnionBoundingBox(t *testing.T) {
	a := Range{Row: 0, Col: 2, RowEnd: 1, ColEnd: 3}
	b := Range{Row: 4, Col: 0, RowEnd: 5, ColEnd: 1}
	assert.Equal(t, Range{Row: 0, Col: 0, RowEnd: 5, ColEnd: 3}, a.Union(b))
}

func TestOffsetAndExpand(t *testing.T) {
	r := Range{Row: 1, Col: 1, RowEnd: 2, ColEnd: 2}

	moved, err := r.Offset(2, 0)
	require.NoError(t, err)
	assert.Equal(t, Range{Row: 3, Col: 1, RowEnd: 4, ColEnd: 2}, moved)

	_, err = r.Offset(-2, 0)
	assert.Error(t, err)

	grown, err := r.Expand(3, 1)
	require.NoError(t, err)
	assert.Equal(t, Range{Row: 1, Col: 1, RowEnd: 5, ColEnd: 3}, grown)
}

func TestRefString(t *testing.T) {
	tests := []struct {
		sheet string
		want  string
	}{
		{"", "A1:B4"},
		{"data", "data!A1:B4"},
		{"my data", "'my data'!A1:B4"},
		{"it's", "'it''s'!A1:B4"},
	}
	r := Range{Row: 0, Col: 0, RowEnd: 3, ColEnd: 1}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ref{Sheet: tt.sheet, Range: r}.String())
	}
}
