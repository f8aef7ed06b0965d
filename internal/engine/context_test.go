package engine

import "testing"

func TestContext_Immutability(t *testing.T) {
	base := NewContext()
	base = base.MergeExtracted(map[string]any{"a": "1"})

	next := base.MergeExtracted(map[string]any{"b": "2"})
	if _, ok := base.Extracted["b"]; ok {
		t.Error("MergeExtracted should not mutate the receiver")
	}
	if next.Extracted["a"] != "1" {
		t.Error("merged context should carry existing values")
	}
	if next.Extracted["b"] != "2" {
		t.Error("merged context should carry new values")
	}

	shared := base.WithShared("key", "value")
	if _, ok := base.Shared["key"]; ok {
		t.Error("WithShared should not mutate the receiver")
	}
	if shared.Shared["key"] != "value" {
		t.Error("WithShared should set the value on the copy")
	}

	paged := base.WithPagination(Pagination{Page: 5, HasNext: true})
	if base.Pagination.Page != 1 {
		t.Error("WithPagination should not mutate the receiver")
	}
	if paged.Pagination.Page != 5 || !paged.Pagination.HasNext {
		t.Error("WithPagination should update the copy")
	}
}

func TestContext_WithURL(t *testing.T) {
	ctx := NewContext().WithURL("https://example.com/a/b?x=1#frag")

	if ctx.URL.Full != "https://example.com/a/b?x=1#frag" {
		t.Errorf("unexpected full url: %q", ctx.URL.Full)
	}
	if ctx.URL.Protocol != "https" {
		t.Errorf("unexpected protocol: %q", ctx.URL.Protocol)
	}
	if ctx.URL.Host != "example.com" {
		t.Errorf("unexpected host: %q", ctx.URL.Host)
	}
	if ctx.URL.Path != "/a/b" {
		t.Errorf("unexpected path: %q", ctx.URL.Path)
	}
	if ctx.URL.Query != "x=1" {
		t.Errorf("unexpected query: %q", ctx.URL.Query)
	}
	if ctx.URL.Fragment != "frag" {
		t.Errorf("unexpected fragment: %q", ctx.URL.Fragment)
	}
}

func TestContext_WithURL_Malformed(t *testing.T) {
	ctx := NewContext().WithURL("://nope")

	if ctx.URL.Full != "://nope" {
		t.Errorf("full should keep the raw value, got %q", ctx.URL.Full)
	}
	if ctx.URL.Host != "" {
		t.Errorf("host should be empty for malformed url, got %q", ctx.URL.Host)
	}
}

func TestNewContext_Defaults(t *testing.T) {
	ctx := NewContext()

	if ctx.Pagination.Page != 1 {
		t.Errorf("initial page should be 1, got %d", ctx.Pagination.Page)
	}
	if ctx.Timestamp.Epoch == 0 {
		t.Error("timestamp epoch should be set")
	}
	if ctx.Extracted == nil || ctx.Shared == nil {
		t.Error("maps should be initialized")
	}
}
