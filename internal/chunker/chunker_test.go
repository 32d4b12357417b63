package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitBoundaryRule(t *testing.T) {
	// Each passage length is counted as word lengths plus one separator per
	// word; a passage seals when the next word would push that past target.
	got := Split("alpha beta gamma delta epsilon", 12, 1)
	require.Equal(t, []string{"alpha beta", "beta gamma", "gamma delta", "delta epsilon"}, got)
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 40)
	first := Split(text, 100, 5)
	second := Split(text, 100, 5)
	require.Equal(t, first, second)
	require.NotEmpty(t, first)
}

func TestSplitCoverage(t *testing.T) {
	words := []string{"aa", "bb", "cc", "dd", "ee", "ff", "gg", "hh", "ii", "jj", "kk", "ll"}
	chunks := Split(strings.Join(words, " "), 12, 1)
	require.Greater(t, len(chunks), 1)

	// Dropping the overlap seed from every chunk after the first must
	// reconstruct the original word sequence.
	reconstructed := strings.Fields(chunks[0])
	for _, c := range chunks[1:] {
		reconstructed = append(reconstructed, strings.Fields(c)[1:]...)
	}
	require.Equal(t, words, reconstructed)
}

func TestSplitBound(t *testing.T) {
	words := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		words = append(words, "word")
	}
	for _, c := range Split(strings.Join(words, " "), 20, 2) {
		require.LessOrEqual(t, len(c), 20, "chunk %q exceeds target", c)
	}
}

func TestSplitOversizedWordFormsOwnPassage(t *testing.T) {
	got := Split("supercalifragilisticexpialidocious", 5, 1)
	require.Equal(t, []string{"supercalifragilisticexpialidocious"}, got)
}

func TestSplitEmptyInput(t *testing.T) {
	require.Empty(t, Split("", 100, 10))
	require.Empty(t, Split("   \n\t ", 100, 10))
}

func TestSplitPagesRenumbersAcrossPages(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "alpha beta gamma delta epsilon"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "zeta eta"},
	}
	passages := SplitPages(pages, 12, 1)
	require.Len(t, passages, 5)
	for i, p := range passages {
		require.Equal(t, i, p.Index)
	}
	require.Equal(t, 1, *passages[0].PageNumber)
	require.Equal(t, 1, *passages[3].PageNumber)
	require.Equal(t, 3, *passages[4].PageNumber)
	require.Equal(t, "zeta eta", passages[4].Content)
}
