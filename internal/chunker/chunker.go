package chunker

import "strings"

// Page is one unit of source text. Passages never span a page boundary.
type Page struct {
	Number int
	Text   string
}

// Passage is a bounded span of document text, the unit of embedding and
// retrieval. Index is assigned by SplitPages and is monotonic across the
// whole document.
type Passage struct {
	Index      int
	PageNumber *int
	Content    string
}

// Split breaks text into word-bounded passages of roughly targetSize
// characters. A passage is sealed once appending the next word would push
// its length (word lengths plus one separator per word) past targetSize,
// and the next passage is seeded with the trailing overlap words of the
// sealed one. The final partial passage is always emitted. Words are never
// split, so a single word longer than targetSize still forms a passage of
// its own. Output is deterministic for fixed inputs.
func Split(text string, targetSize, overlap int) []string {
	if targetSize <= 0 {
		targetSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	out := make([]string, 0, len(words)/8+1)
	current := make([]string, 0, 64)
	currentLen := 0

	for _, word := range words {
		wordLen := len(word) + 1 // +1 for separator
		if currentLen+wordLen > targetSize && len(current) > 0 {
			out = append(out, strings.Join(current, " "))

			seed := current
			if len(current) > overlap {
				seed = current[len(current)-overlap:]
			}
			next := make([]string, 0, len(seed)+1)
			next = append(next, seed...)
			next = append(next, word)
			current = next
			currentLen = 0
			for _, w := range current {
				currentLen += len(w) + 1
			}
			continue
		}
		current = append(current, word)
		currentLen += wordLen
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// SplitPages chunks each page independently and renumbers the resulting
// passages into one zero-based monotonic sequence for the whole document.
func SplitPages(pages []Page, targetSize, overlap int) []Passage {
	passages := make([]Passage, 0, len(pages))
	idx := 0
	for _, p := range pages {
		page := p.Number
		for _, content := range Split(p.Text, targetSize, overlap) {
			pn := page
			passages = append(passages, Passage{
				Index:      idx,
				PageNumber: &pn,
				Content:    content,
			})
			idx++
		}
	}
	return passages
}
