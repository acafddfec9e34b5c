package reading

import "unicode"

const searchContextRadius = 50

// Search splits content with the navigation page size and scans every page for keyword.
func Search(content, keyword string, wordsPerPage int) []SearchHit {
	if content == "" || keyword == "" {
		return []SearchHit{}
	}
	return SearchPages(SplitPages(content, wordsPerPage), keyword)
}

// SearchPages reports every non-overlapping, case-insensitive occurrence of keyword.
// Positions and context bounds are rune offsets within the page text.
func SearchPages(pages []string, keyword string) []SearchHit {
	hits := []SearchHit{}
	needle := lowerRunes(keyword)
	if len(needle) == 0 {
		return hits
	}

	for index, page := range pages {
		original := []rune(page)
		if len(original) < len(needle) {
			continue
		}
		haystack := lowerRunes(page)

		position := 0
		for position+len(needle) <= len(haystack) {
			offset := indexRunes(haystack[position:], needle)
			if offset < 0 {
				break
			}
			start := position + offset
			from := max(0, start-searchContextRadius)
			to := min(len(original), start+len(needle)+searchContextRadius)
			hits = append(hits, SearchHit{
				Page:     index + 1,
				Context:  string(original[from:to]),
				Position: start,
			})
			position = start + len(needle)
		}
	}
	return hits
}

// lowerRunes lowercases rune by rune so offsets line up with the original text.
func lowerRunes(text string) []rune {
	runes := []rune(text)
	for index, r := range runes {
		runes[index] = unicode.ToLower(r)
	}
	return runes
}

func indexRunes(haystack, needle []rune) int {
	last := len(haystack) - len(needle)
	for start := 0; start <= last; start++ {
		matched := true
		for offset, r := range needle {
			if haystack[start+offset] != r {
				matched = false
				break
			}
		}
		if matched {
			return start
		}
	}
	return -1
}
