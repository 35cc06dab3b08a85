package merge

import (
	"testing"

	"github.com/dogear-go/dogear/pkg/merge/core"
)

func TestDedupeIndexKeyForBookmarksIgnoresPosition(t *testing.T) {
	idx := newDedupeIndex()
	a := core.NewBookmarkContent("Example", "https://example.com/")
	b := core.NewBookmarkContent("Example", "https://example.com/")

	if idx.keyFor(a, 0) != idx.keyFor(b, 5) {
		t.Error("bookmarks with identical content should dedupe regardless of position")
	}
}

func TestDedupeIndexKeyForSeparatorsArePositionSensitive(t *testing.T) {
	idx := newDedupeIndex()
	sep := core.NewSeparatorContent()

	if idx.keyFor(sep, 0) == idx.keyFor(sep, 1) {
		t.Error("separators at different positions shouldn't dedupe")
	}
	if idx.keyFor(sep, 2) != idx.keyFor(sep, 2) {
		t.Error("the same separator position should produce a stable key")
	}
}

func TestDedupeIndexNormalizesTitleWhitespaceAndUnicodeForm(t *testing.T) {
	idx := newDedupeIndex()
	plain := core.NewFolderContent("Café")
	// "Café" with a combining acute accent (NFD) instead of the precomposed
	// character (NFC); normalizeTitle should fold both to the same key.
	decomposed := core.NewFolderContent("Café")
	padded := core.NewFolderContent("  Café  ")

	if idx.keyFor(plain, 0) != idx.keyFor(decomposed, 0) {
		t.Error("NFC-equivalent titles should produce the same dedupe key")
	}
	if idx.keyFor(plain, 0) != idx.keyFor(padded, 0) {
		t.Error("surrounding whitespace shouldn't affect the dedupe key")
	}
}

func TestDedupeIndexDistinguishesKinds(t *testing.T) {
	idx := newDedupeIndex()
	bookmark := core.NewBookmarkContent("Home", "https://example.com/")
	folder := core.NewFolderContent("Home")

	if idx.keyFor(bookmark, 0) == idx.keyFor(folder, 0) {
		t.Error("a bookmark and folder sharing a title shouldn't dedupe")
	}
}

func TestNormalizeURLConvertsIDNAHost(t *testing.T) {
	ascii := normalizeURL("https://xn--mnchen-3ya.example/")
	unicode := normalizeURL("https://münchen.example/")
	if ascii != unicode {
		t.Errorf("normalizeURL(%q) = %q, want it to match the punycode form %q", "https://münchen.example/", unicode, ascii)
	}
}

func TestNormalizeURLFallsBackOnParseFailure(t *testing.T) {
	raw := "://not a url"
	if got := normalizeURL(raw); got != raw {
		t.Errorf("normalizeURL(%q) = %q, want the raw string unchanged", raw, got)
	}
}
