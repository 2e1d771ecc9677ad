package domain

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func strPtr(v string) *string { return &v }

func TestSummarize_NoChanges(t *testing.T) {
	summary := Summarize(Transition{QtyBefore: 5, QtyAfter: 5, RackBefore: strPtr("R1"), RackAfter: strPtr("R1")})

	assert.Equal(t, ResultNoChanges, summary.Result)
	assert.Empty(t, summary.Notes)
	assert.Nil(t, summary.Changes)
}

func TestSummarize_NullRackEqualsNullRack(t *testing.T) {
	summary := Summarize(Transition{QtyBefore: 1, QtyAfter: 1})
	assert.Equal(t, ResultNoChanges, summary.Result)
}

func TestSummarize_ChangeNotes(t *testing.T) {
	cases := []Transition{
		{QtyBefore: 10, QtyAfter: 7, RackBefore: strPtr("R1"), RackAfter: strPtr("R1")},
		{QtyBefore: 10, QtyAfter: 10, RackBefore: strPtr("R1"), RackAfter: strPtr("R2")},
		{QtyBefore: 10, QtyAfter: 7, RackBefore: strPtr("R1"), RackAfter: strPtr("R2")},
		{QtyBefore: 0, QtyAfter: 3, RackBefore: nil, RackAfter: strPtr("A-01")},
		{QtyBefore: 3, QtyAfter: 3, RackBefore: strPtr("A-01"), RackAfter: nil},
	}

	lines := make([]string, 0, len(cases))
	for _, tc := range cases {
		summary := Summarize(tc)
		assert.Equal(t, ResultChanged, summary.Result)
		lines = append(lines, summary.Notes)
	}

	g := goldie.New(t)
	g.Assert(t, "change_notes", []byte(strings.Join(lines, "\n")+"\n"))
}

func TestSummarize_ChangesMap(t *testing.T) {
	summary := Summarize(Transition{QtyBefore: 10, QtyAfter: 7})

	assert.Contains(t, summary.Changes, "quantity")
	assert.NotContains(t, summary.Changes, "rack_location")
	assert.Equal(t, map[string]any{"before": 10, "after": 7}, summary.Changes["quantity"])
}
