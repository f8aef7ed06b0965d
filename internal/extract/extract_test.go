package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shaiso/scrapeflow/internal/domain"
)

const productPage = `<html lang="en">
<head>
	<title>Widget Shop</title>
	<meta name="description" content="Quality widgets">
	<meta name="keywords" content="widgets, deluxe, shop">
	<meta property="og:title" content="Widget Shop OG">
	<link rel="canonical" href="https://shop.example.com/widgets">
	<script>var hidden = "tracker";</script>
	<style>.x { color: red }</style>
</head>
<body>
	<h1 class="title">  Deluxe Widget  </h1>
	<span class="price">$1,299.00</span>
	<div class="sku" data-sku="W-100">stock</div>
	<ul>
		<li class="tag">new</li>
		<li class="tag">sale</li>
		<li class="tag">featured</li>
	</ul>
	<div class="desc"><p>Great <b>widget</b></p></div>
	<a class="next" href="/widgets?page=2">More</a>
	<a href="/widgets?page=2">More again</a>
	<a href="javascript:void(0)">noise</a>
	<a href="#anchor">anchor</a>
	<a href="https://other.example.com/about">about</a>
</body>
</html>`

func TestApply_Markup(t *testing.T) {
	rules := []domain.ExtractionRule{
		{Name: "title", Type: domain.ExtractMarkup, Selector: "h1.title"},
		{Name: "sku", Type: domain.ExtractMarkup, Selector: ".sku", Attribute: "data-sku"},
		{Name: "desc", Type: domain.ExtractMarkup, Selector: ".desc", Attribute: "html"},
		{Name: "tags", Type: domain.ExtractMarkup, Selector: "li.tag", Multiple: true},
	}

	values, err := Apply(productPage, rules)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if values["title"] != "Deluxe Widget" {
		t.Errorf("title: got %v", values["title"])
	}
	if values["sku"] != "W-100" {
		t.Errorf("sku: got %v", values["sku"])
	}
	if values["desc"] != "<p>Great <b>widget</b></p>" {
		t.Errorf("desc: got %v", values["desc"])
	}

	tags, ok := values["tags"].([]any)
	if !ok {
		t.Fatalf("tags should be an array, got %T", values["tags"])
	}
	expected := []any{"new", "sale", "featured"}
	if !reflect.DeepEqual(tags, expected) {
		t.Errorf("tags: expected %v, got %v", expected, tags)
	}
}

func TestApply_MissingBehavior(t *testing.T) {
	t.Run("optional missing yields null", func(t *testing.T) {
		values, err := Apply(productPage, []domain.ExtractionRule{
			{Name: "nope", Type: domain.ExtractMarkup, Selector: ".does-not-exist"},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		// имя присутствует с null: "правило сработало впустую"
		// отличимо от "правила не было"
		v, ok := values["nope"]
		if !ok {
			t.Fatal("missing optional rule should still produce its key")
		}
		if v != nil {
			t.Errorf("expected nil value, got %v", v)
		}
	})

	t.Run("optional missing multiple yields empty array", func(t *testing.T) {
		values, err := Apply(productPage, []domain.ExtractionRule{
			{Name: "nope", Type: domain.ExtractMarkup, Selector: ".does-not-exist", Multiple: true},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		arr, ok := values["nope"].([]any)
		if !ok || len(arr) != 0 {
			t.Errorf("expected empty array, got %v", values["nope"])
		}
	})

	t.Run("default fills missing", func(t *testing.T) {
		values, err := Apply(productPage, []domain.ExtractionRule{
			{Name: "nope", Type: domain.ExtractMarkup, Selector: ".does-not-exist", Default: "n/a"},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if values["nope"] != "n/a" {
			t.Errorf("expected default, got %v", values["nope"])
		}
	})

	t.Run("required missing fails the whole batch", func(t *testing.T) {
		_, err := Apply(productPage, []domain.ExtractionRule{
			{Name: "title", Type: domain.ExtractMarkup, Selector: "h1.title"},
			{Name: "nope", Type: domain.ExtractMarkup, Selector: ".does-not-exist", Required: true},
		})
		if !errors.Is(err, ErrRequiredField) {
			t.Fatalf("expected ErrRequiredField, got %v", err)
		}

		var rfe *RequiredFieldError
		if !errors.As(err, &rfe) {
			t.Fatal("expected RequiredFieldError")
		}
		if rfe.Rule != "nope" {
			t.Errorf("expected rule nope, got %q", rfe.Rule)
		}
	})

	t.Run("required missing with default uses default", func(t *testing.T) {
		values, err := Apply(productPage, []domain.ExtractionRule{
			{Name: "nope", Type: domain.ExtractMarkup, Selector: ".does-not-exist", Required: true, Default: "fallback"},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if values["nope"] != "fallback" {
			t.Errorf("expected fallback, got %v", values["nope"])
		}
	})
}

func TestApply_Regex(t *testing.T) {
	body := `Order #A-1001 placed. Contact: help@example.com or sales@example.com.`

	t.Run("capture group", func(t *testing.T) {
		values, err := Apply(body, []domain.ExtractionRule{
			{Name: "order", Type: domain.ExtractRegex, Selector: `Order #([A-Z]-\d+)`},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if values["order"] != "A-1001" {
			t.Errorf("expected A-1001, got %v", values["order"])
		}
	})

	t.Run("no groups takes full match", func(t *testing.T) {
		values, err := Apply(body, []domain.ExtractionRule{
			{Name: "word", Type: domain.ExtractRegex, Selector: `placed`},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if values["word"] != "placed" {
			t.Errorf("expected placed, got %v", values["word"])
		}
	})

	t.Run("multiple matches", func(t *testing.T) {
		values, err := Apply(body, []domain.ExtractionRule{
			{Name: "emails", Type: domain.ExtractRegex, Selector: `(\S+@\S+\.\w+)`, Multiple: true},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		emails, ok := values["emails"].([]any)
		if !ok || len(emails) != 2 {
			t.Fatalf("expected 2 emails, got %v", values["emails"])
		}
	})

	t.Run("invalid pattern is a rule error", func(t *testing.T) {
		_, err := Apply(body, []domain.ExtractionRule{
			{Name: "bad", Type: domain.ExtractRegex, Selector: `([unclosed`},
		})
		var re *RuleError
		if !errors.As(err, &re) {
			t.Fatalf("expected RuleError, got %v", err)
		}
		if re.Rule != "bad" {
			t.Errorf("expected rule bad, got %q", re.Rule)
		}
	})
}

func TestApply_JSONPath(t *testing.T) {
	body := `{
		"product": {"name": "Widget", "price": 12.5},
		"items": [
			{"sku": "a"},
			{"sku": "b"}
		]
	}`

	tests := []struct {
		name     string
		rule     domain.ExtractionRule
		expected any
	}{
		{
			name:     "nested scalar",
			rule:     domain.ExtractionRule{Name: "v", Type: domain.ExtractJSONPath, Selector: "product.name"},
			expected: "Widget",
		},
		{
			name:     "numeric value",
			rule:     domain.ExtractionRule{Name: "v", Type: domain.ExtractJSONPath, Selector: "product.price"},
			expected: 12.5,
		},
		{
			name:     "array index",
			rule:     domain.ExtractionRule{Name: "v", Type: domain.ExtractJSONPath, Selector: "items[1].sku"},
			expected: "b",
		},
		{
			name:     "multiple unwraps array",
			rule:     domain.ExtractionRule{Name: "v", Type: domain.ExtractJSONPath, Selector: "items", Multiple: true},
			expected: []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}},
		},
		{
			name:     "multiple wraps scalar",
			rule:     domain.ExtractionRule{Name: "v", Type: domain.ExtractJSONPath, Selector: "product.name", Multiple: true},
			expected: []any{"Widget"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := Apply(body, []domain.ExtractionRule{tt.rule})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !reflect.DeepEqual(values["v"], tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, values["v"])
			}
		})
	}

	t.Run("missing path with default", func(t *testing.T) {
		values, err := Apply(body, []domain.ExtractionRule{
			{Name: "v", Type: domain.ExtractJSONPath, Selector: "product.weight", Default: 0},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if values["v"] != 0 {
			t.Errorf("expected default 0, got %v", values["v"])
		}
	})

	t.Run("invalid json document", func(t *testing.T) {
		_, err := Apply("not json", []domain.ExtractionRule{
			{Name: "v", Type: domain.ExtractJSONPath, Selector: "a"},
		})
		var re *RuleError
		if !errors.As(err, &re) {
			t.Fatalf("expected RuleError, got %v", err)
		}
	})
}

func TestApply_PlainText(t *testing.T) {
	values, err := Apply(productPage, []domain.ExtractionRule{
		{Name: "body", Type: domain.ExtractPlainText, Selector: "body"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	text, ok := values["body"].(string)
	if !ok {
		t.Fatalf("expected string, got %T", values["body"])
	}

	for _, want := range []string{"Deluxe Widget", "$1,299.00", "new sale featured"} {
		if !strings.Contains(text, want) {
			t.Errorf("text should contain %q, got %q", want, text)
		}
	}
	// содержимое script и style невидимо
	for _, hidden := range []string{"tracker", "color: red"} {
		if strings.Contains(text, hidden) {
			t.Errorf("text should not contain %q", hidden)
		}
	}
}

func TestApply_Transforms(t *testing.T) {
	values, err := Apply(productPage, []domain.ExtractionRule{
		{Name: "price", Type: domain.ExtractMarkup, Selector: ".price", Transform: []string{"parse_float"}},
		{Name: "title", Type: domain.ExtractMarkup, Selector: "h1.title", Transform: []string{"trim", "lowercase"}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if values["price"] != 1299.0 {
		t.Errorf("expected 1299, got %v", values["price"])
	}
	if values["title"] != "deluxe widget" {
		t.Errorf("expected deluxe widget, got %v", values["title"])
	}
}

func TestApply_UnknownStrategy(t *testing.T) {
	_, err := Apply(productPage, []domain.ExtractionRule{
		{Name: "v", Type: "psychic", Selector: "x"},
	})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}
