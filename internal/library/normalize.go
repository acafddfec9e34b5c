package library

import (
	"bytes"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var extensionContentTypes = map[string]string{
	".txt":      ContentTypePlain,
	".text":     ContentTypePlain,
	".md":       ContentTypeMarkdown,
	".markdown": ContentTypeMarkdown,
	".html":     ContentTypeHTML,
	".htm":      ContentTypeHTML,
}

// ResolveContentType returns the supported content type of an upload, preferring the declared type.
func ResolveContentType(declared, fileName string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	switch mediaType {
	case ContentTypePlain, ContentTypeMarkdown, ContentTypeHTML:
		return mediaType, nil
	case "text/x-markdown":
		return ContentTypeMarkdown, nil
	case "application/xhtml+xml":
		return ContentTypeHTML, nil
	case "", "application/octet-stream":
		if contentType, ok := extensionContentTypes[strings.ToLower(path.Ext(fileName))]; ok {
			return contentType, nil
		}
	}
	return "", ErrUnsupportedFileType
}

// NormalizeText converts an upload of contentType to plain text.
// Paragraph breaks survive as blank lines.
func NormalizeText(contentType string, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	switch contentType {
	case ContentTypePlain:
		return text, nil
	case ContentTypeMarkdown:
		return stripMarkdown(text), nil
	case ContentTypeHTML:
		return stripHTML(text)
	default:
		return "", ErrUnsupportedFileType
	}
}

var (
	markdownCodeFence    = regexp.MustCompile("(?s)```.*?```")
	markdownInlineCode   = regexp.MustCompile("`([^`]+)`")
	markdownImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	markdownLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	markdownHeading      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	markdownEmphasis     = regexp.MustCompile(`(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	markdownBlockquote   = regexp.MustCompile(`(?m)^>[ \t]?`)
	markdownRule         = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	markdownListMarker   = regexp.MustCompile(`(?m)^[ \t]*([-*+]|\d+\.)[ \t]+`)
	excessiveBlankLines  = regexp.MustCompile(`\n{3,}`)
	horizontalWhitespace = regexp.MustCompile(`[ \t]+`)
)

func stripMarkdown(text string) string {
	text = markdownCodeFence.ReplaceAllString(text, "")
	text = markdownImage.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1")
	text = markdownInlineCode.ReplaceAllString(text, "$1")
	text = markdownHeading.ReplaceAllString(text, "")
	text = markdownEmphasis.ReplaceAllString(text, "$2")
	text = markdownBlockquote.ReplaceAllString(text, "")
	text = markdownRule.ReplaceAllString(text, "")
	text = markdownListMarker.ReplaceAllString(text, "")
	text = excessiveBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var htmlBlockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Section: true, atom.Article: true,
}

var htmlSkippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Head: true, atom.Svg: true,
}

// stripHTML walks the token stream, keeping text outside skipped elements.
func stripHTML(text string) (string, error) {
	tokenizer := html.NewTokenizer(strings.NewReader(text))
	var builder strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return tidyText(builder.String()), nil
		case html.StartTagToken:
			token := tokenizer.Token()
			if htmlSkippedElements[token.DataAtom] {
				skipDepth++
				continue
			}
			if htmlBlockElements[token.DataAtom] {
				builder.WriteString("\n\n")
			}
		case html.SelfClosingTagToken:
			if htmlBlockElements[tokenizer.Token().DataAtom] {
				builder.WriteString("\n\n")
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if htmlSkippedElements[token.DataAtom] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if htmlBlockElements[token.DataAtom] {
				builder.WriteString("\n\n")
			}
		case html.TextToken:
			if skipDepth == 0 {
				builder.Write(tokenizer.Text())
			}
		}
	}
}

func tidyText(text string) string {
	lines := strings.Split(text, "\n")
	for index, line := range lines {
		lines[index] = strings.TrimSpace(horizontalWhitespace.ReplaceAllString(line, " "))
	}
	joined := strings.Join(lines, "\n")
	joined = excessiveBlankLines.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}
