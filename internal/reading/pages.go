package reading

import "strings"

// SplitPages partitions content into pages of wordsPerPage whitespace-delimited tokens.
// Pages are rebuilt by joining tokens with a single space, so newlines do not survive.
// Content without tokens yields one empty page.
func SplitPages(content string, wordsPerPage int) []string {
	if wordsPerPage <= 0 {
		wordsPerPage = DefaultWordsPerPage
	}
	words := strings.Fields(content)
	if len(words) == 0 {
		return []string{""}
	}

	pages := make([]string, 0, (len(words)+wordsPerPage-1)/wordsPerPage)
	for start := 0; start < len(words); start += wordsPerPage {
		end := min(start+wordsPerPage, len(words))
		pages = append(pages, strings.Join(words[start:end], " "))
	}
	return pages
}
