package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link — ссылка страницы с её текстом.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// NextURL находит адрес "следующей страницы" по селектору.
//
// Берётся первый узел: href для ссылок, иначе data-url. Относительный
// адрес разрешается против baseURL. Пустой результат означает
// отсутствие следующей страницы.
func NextURL(body, selector, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	node := doc.Find(selector).First()
	if node.Length() == 0 {
		return "", nil
	}

	href, ok := node.Attr("href")
	if !ok {
		href, ok = node.Attr("data-url")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return "", nil
	}

	return absoluteURL(strings.TrimSpace(href), baseURL), nil
}

// Links собирает ссылки документа с непустым href, разрешая
// относительные адреса против baseURL. Повторы одного адреса
// отбрасываются, порядок первого вхождения сохраняется.
func Links(body, baseURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	var links []Link
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			return
		}
		resolved := absoluteURL(href, baseURL)
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, Link{
			URL:  resolved,
			Text: strings.TrimSpace(s.Text()),
		})
	})
	return links, nil
}

func absoluteURL(href, baseURL string) string {
	u, err := url.Parse(href)
	if err != nil || u.IsAbs() {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return href
	}
	return base.ResolveReference(u).String()
}
