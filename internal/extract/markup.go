package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// applyMarkup выбирает узлы по CSS селектору и снимает с каждого
// значение согласно Attribute.
func applyMarkup(doc *goquery.Document, rule *domain.ExtractionRule) (any, bool) {
	sel := doc.Find(rule.Selector)
	if sel.Length() == 0 {
		return nil, false
	}

	if !rule.Multiple {
		v, ok := nodeValue(sel.First(), rule.Attribute)
		if !ok {
			return nil, false
		}
		return v, true
	}

	var values []any
	sel.Each(func(_ int, s *goquery.Selection) {
		if v, ok := nodeValue(s, rule.Attribute); ok {
			values = append(values, v)
		}
	})
	if len(values) == 0 {
		return nil, false
	}
	return values, true
}

// nodeValue снимает значение с одного узла:
// "" или "text" — видимый текст, "html" — внутренняя разметка,
// любое другое имя — значение одноимённого атрибута.
func nodeValue(s *goquery.Selection, attribute string) (string, bool) {
	switch attribute {
	case "", "text":
		return strings.TrimSpace(s.Text()), true
	case "html":
		inner, err := s.Html()
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(inner), true
	default:
		return s.Attr(attribute)
	}
}
