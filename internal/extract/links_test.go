package extract

import "testing"

func TestNextURL(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		selector string
		expected string
	}{
		{
			name:     "relative href resolves against base",
			body:     `<a class="next" href="/page/2">next</a>`,
			selector: "a.next",
			expected: "https://example.com/page/2",
		},
		{
			name:     "absolute href stays",
			body:     `<a class="next" href="https://other.com/p2">next</a>`,
			selector: "a.next",
			expected: "https://other.com/p2",
		},
		{
			name:     "data-url fallback",
			body:     `<button class="next" data-url="/page/3">load more</button>`,
			selector: "button.next",
			expected: "https://example.com/page/3",
		},
		{
			name:     "no match means no next page",
			body:     `<p>the end</p>`,
			selector: "a.next",
			expected: "",
		},
		{
			name:     "empty href means no next page",
			body:     `<a class="next" href="  ">next</a>`,
			selector: "a.next",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextURL(tt.body, tt.selector, "https://example.com/page/1")
			if err != nil {
				t.Fatalf("NextURL: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLinks(t *testing.T) {
	links, err := Links(productPage, "https://shop.example.com/widgets")
	if err != nil {
		t.Fatalf("Links: %v", err)
	}

	// javascript: и #anchor отфильтрованы, повтор адреса схлопнут
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	if links[0].URL != "https://shop.example.com/widgets?page=2" {
		t.Errorf("unexpected first link: %s", links[0].URL)
	}
	if links[0].Text != "More" {
		t.Errorf("unexpected first link text: %s", links[0].Text)
	}
	if links[1].URL != "https://other.example.com/about" {
		t.Errorf("unexpected second link: %s", links[1].URL)
	}
}

func TestLinks_Deduplicated(t *testing.T) {
	body := `<a href="/a">one</a><a href="/a">dup</a><a href="/b">two</a>`
	links, err := Links(body, "https://example.com")
	if err != nil {
		t.Fatalf("Links: %v", err)
	}

	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	// сохраняется первое вхождение
	if links[0].URL != "https://example.com/a" || links[0].Text != "one" {
		t.Errorf("unexpected first link: %+v", links[0])
	}
	if links[1].URL != "https://example.com/b" {
		t.Errorf("unexpected second link: %+v", links[1])
	}
}

func TestMetadata(t *testing.T) {
	meta, err := Metadata(productPage)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}

	if meta.Title != "Widget Shop" {
		t.Errorf("title: got %q", meta.Title)
	}
	if meta.Description != "Quality widgets" {
		t.Errorf("description: got %q", meta.Description)
	}
	if meta.Keywords != "widgets, deluxe, shop" {
		t.Errorf("keywords: got %q", meta.Keywords)
	}
	if meta.Canonical != "https://shop.example.com/widgets" {
		t.Errorf("canonical: got %q", meta.Canonical)
	}
	if meta.Language != "en" {
		t.Errorf("language: got %q", meta.Language)
	}
	if meta.OGTitle != "Widget Shop OG" {
		t.Errorf("og title: got %q", meta.OGTitle)
	}
}
