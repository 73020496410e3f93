package blocks_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetflow/internal/blocks"
	"meetflow/internal/model"
)

func TestParse_FenceRoundTrip(t *testing.T) {
	parts := blocks.Parse("before ```code\nhi\n``` after")

	require.Len(t, parts, 3)
	assert.Equal(t, model.MessagePart{Type: model.PartText, Content: "before", IsComplete: true}, parts[0])
	assert.Equal(t, model.MessagePart{Type: model.PartArtifact, Content: "code\nhi\n", IsComplete: true}, parts[1])
	assert.Equal(t, model.MessagePart{Type: model.PartText, Content: "after", IsComplete: true}, parts[2])
}

func TestParse_IncompleteFence(t *testing.T) {
	parts := blocks.Parse("intro ```still going")

	require.Len(t, parts, 2)
	assert.Equal(t, model.MessagePart{Type: model.PartText, Content: "intro", IsComplete: true}, parts[0])
	assert.Equal(t, model.MessagePart{Type: model.PartArtifact, Content: "still going", IsComplete: false}, parts[1])
}

func TestParse_Table(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []model.MessagePart
	}{
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "whitespace only",
			input: "  \n\t  ",
			want:  nil,
		},
		{
			name:  "plain prose",
			input: "hello there",
			want: []model.MessagePart{
				{Type: model.PartText, Content: "hello there", IsComplete: true},
			},
		},
		{
			name:  "artifact only",
			input: "```x = 1```",
			want: []model.MessagePart{
				{Type: model.PartArtifact, Content: "x = 1", IsComplete: true},
			},
		},
		{
			name:  "bare dangling fence has no parts",
			input: "```",
			want:  nil,
		},
		{
			name:  "empty fenced block is dropped",
			input: "before `````` after",
			want: []model.MessagePart{
				{Type: model.PartText, Content: "before", IsComplete: true},
				{Type: model.PartText, Content: "after", IsComplete: true},
			},
		},
		{
			name:  "two artifacts",
			input: "a```one```b```two```c",
			want: []model.MessagePart{
				{Type: model.PartText, Content: "a", IsComplete: true},
				{Type: model.PartArtifact, Content: "one", IsComplete: true},
				{Type: model.PartText, Content: "b", IsComplete: true},
				{Type: model.PartArtifact, Content: "two", IsComplete: true},
				{Type: model.PartText, Content: "c", IsComplete: true},
			},
		},
		{
			name:  "fences do not nest, delimiter always toggles",
			input: "```outer```inner```tail",
			want: []model.MessagePart{
				{Type: model.PartArtifact, Content: "outer", IsComplete: true},
				{Type: model.PartText, Content: "inner", IsComplete: true},
				{Type: model.PartArtifact, Content: "tail", IsComplete: false},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nonEmpty(blocks.Parse(tc.input)))
		})
	}
}

// nonEmpty normalizes a nil/empty result for table comparison.
func nonEmpty(parts []model.MessagePart) []model.MessagePart {
	if len(parts) == 0 {
		return nil
	}
	return parts
}

func TestParse_Totality(t *testing.T) {
	inputs := []string{
		"", "`", "``", "```", "````", "`````",
		"a`b``c```d````e",
		strings.Repeat("```", 7),
		"text``almost```fenced``still",
	}
	for _, in := range inputs {
		for _, p := range blocks.Parse(in) {
			assert.NotEmpty(t, strings.TrimSpace(p.Content), "input %q", in)
		}
	}
}

func TestScanner_MatchesOneShotParse(t *testing.T) {
	full := "prose one ```func main() {}\n``` middle ```SELECT 1;``` trailing ```open"

	// Feed the same text in every possible chunking of size 1..4 and check
	// the final part list always matches a one-shot parse.
	for size := 1; size <= 4; size++ {
		s := blocks.NewScanner()
		var parts []model.MessagePart
		for i := 0; i < len(full); i += size {
			end := i + size
			if end > len(full) {
				end = len(full)
			}
			parts = s.Feed(full[i:end])
		}
		assert.Equal(t, blocks.Parse(full), parts, "chunk size %d", size)
		assert.Equal(t, full, s.Text())
	}
}

func TestScanner_GrowthKeepsFinishedPartsStable(t *testing.T) {
	chunks := []string{
		"here is a plan ", "```", "step 1\nstep 2", "```", " and then ", "```more",
	}

	s := blocks.NewScanner()
	var prev []model.MessagePart
	for _, c := range chunks {
		parts := s.Feed(c)

		// Every part of the previous snapshot except its dangling last one
		// must reappear unchanged as a prefix of the new snapshot.
		stable := len(prev)
		if stable > 0 {
			stable--
		}
		require.GreaterOrEqual(t, len(parts), stable)
		assert.Equal(t, prev[:stable], parts[:stable])
		prev = parts
	}

	require.Len(t, prev, 4)
	assert.Equal(t, "here is a plan", prev[0].Content)
	assert.Equal(t, "step 1\nstep 2", prev[1].Content)
	assert.Equal(t, "and then", prev[2].Content)
	assert.Equal(t, model.MessagePart{Type: model.PartArtifact, Content: "more", IsComplete: false}, prev[3])
}

func TestScanner_DelimiterSplitAcrossChunks(t *testing.T) {
	s := blocks.NewScanner()
	s.Feed("note `")
	s.Feed("`")
	parts := s.Feed("`payload")

	require.Len(t, parts, 2)
	assert.Equal(t, model.MessagePart{Type: model.PartText, Content: "note", IsComplete: true}, parts[0])
	assert.Equal(t, model.MessagePart{Type: model.PartArtifact, Content: "payload", IsComplete: false}, parts[1])
}
