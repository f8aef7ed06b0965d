package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/shaiso/scrapeflow/internal/domain"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Теги, текст которых не считается видимым.
var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// applyPlainText извлекает видимый текст узлов по селектору.
// Пустой селектор означает весь документ.
func applyPlainText(doc *goquery.Document, rule *domain.ExtractionRule) (any, bool) {
	sel := doc.Selection
	if rule.Selector != "" {
		sel = doc.Find(rule.Selector)
	}
	if sel.Length() == 0 {
		return nil, false
	}

	if !rule.Multiple {
		text := visibleText(sel.First())
		if text == "" {
			return nil, false
		}
		return text, true
	}

	var values []any
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := visibleText(s); text != "" {
			values = append(values, text)
		}
	})
	if len(values) == 0 {
		return nil, false
	}
	return values, true
}

// visibleText собирает текстовые узлы выделения, пропуская скрытые
// теги, и нормализует пробелы.
func visibleText(s *goquery.Selection) string {
	var sb strings.Builder
	for _, node := range s.Nodes {
		collectText(node, &sb)
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(sb.String(), " "))
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && invisibleTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
