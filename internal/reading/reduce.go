package reading

import (
	"regexp"
	"strings"
)

const paragraphSeparator = "\n\n"

var sentenceTerminators = regexp.MustCompile(`[.!?]+`)

// Reduce trims page text to the configured number of paragraphs or sentences.
// Amounts below one are treated as one.
func Reduce(pageText string, mode ReadingMode, amount int) string {
	if amount < 1 {
		amount = 1
	}

	switch mode {
	case ModeParagraphs:
		paragraphs := strings.Split(pageText, paragraphSeparator)
		return strings.Join(paragraphs[:min(amount, len(paragraphs))], paragraphSeparator)
	case ModeSentences:
		sentences := sentenceTerminators.Split(pageText, -1)
		reduced := strings.TrimSpace(strings.Join(sentences[:min(amount, len(sentences))], ". "))
		if reduced != "" && !endsWithTerminator(reduced) {
			reduced += "."
		}
		return reduced
	default:
		return pageText
	}
}

func endsWithTerminator(text string) bool {
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}
