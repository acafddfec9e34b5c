package reading

import (
	"strings"
	"testing"
)

func TestSplitPagesGroupsWords(t *testing.T) {
	pages := SplitPages(numberedWords(1200), DefaultWordsPerPage)
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if got := len(strings.Fields(pages[0])); got != 500 {
		t.Fatalf("expected 500 words on page 1, got %d", got)
	}
	if got := len(strings.Fields(pages[2])); got != 200 {
		t.Fatalf("expected 200 words on page 3, got %d", got)
	}
	if !strings.HasPrefix(pages[1], "w501 ") {
		t.Fatalf("unexpected page 2 start: %q", pages[1][:10])
	}
}

func TestSplitPagesExactMultiple(t *testing.T) {
	pages := SplitPages(numberedWords(1000), DefaultWordsPerPage)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
}

func TestSplitPagesCollapsesWhitespace(t *testing.T) {
	pages := SplitPages("  alpha\n\nbeta\tgamma   delta\r\n", 3)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0] != "alpha beta gamma" {
		t.Fatalf("unexpected first page %q", pages[0])
	}
	if pages[1] != "delta" {
		t.Fatalf("unexpected second page %q", pages[1])
	}
}

func TestSplitPagesEmptyContentYieldsSingleEmptyPage(t *testing.T) {
	for _, content := range []string{"", "   \n\t "} {
		pages := SplitPages(content, DefaultWordsPerPage)
		if len(pages) != 1 || pages[0] != "" {
			t.Fatalf("expected one empty page for %q, got %#v", content, pages)
		}
	}
}

func TestSplitPagesFallsBackToDefaultSize(t *testing.T) {
	pages := SplitPages(numberedWords(501), 0)
	if len(pages) != 2 {
		t.Fatalf("expected default page size, got %d pages", len(pages))
	}
}

func TestSplitPagesIsDeterministic(t *testing.T) {
	content := "one two three four five six seven"
	first := SplitPages(content, 2)
	second := SplitPages(content, 2)
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Fatalf("expected identical splits, got %#v and %#v", first, second)
	}
}
