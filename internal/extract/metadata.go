package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMetadata — базовые метаданные HTML страницы.
type PageMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
	Language    string `json:"language,omitempty"`
	OGTitle     string `json:"og_title,omitempty"`
	OGImage     string `json:"og_image,omitempty"`
}

// Metadata извлекает метаданные страницы: title, description,
// keywords, canonical, язык и Open Graph поля.
func Metadata(body string) (*PageMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	meta := &PageMetadata{
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
		Canonical: doc.Find(`link[rel="canonical"]`).First().AttrOr("href", ""),
		Language:  doc.Find("html").First().AttrOr("lang", ""),
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch {
		case s.AttrOr("name", "") == "description":
			meta.Description = content
		case s.AttrOr("name", "") == "keywords":
			meta.Keywords = content
		case s.AttrOr("property", "") == "og:title":
			meta.OGTitle = content
		case s.AttrOr("property", "") == "og:image":
			meta.OGImage = content
		}
	})

	return meta, nil
}
