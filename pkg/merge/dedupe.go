package merge

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang/groupcache/lru"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/dogear-go/dogear/pkg/merge/core"
)

// dedupeCacheSize bounds the number of normalized content keys kept in
// memory across a merge. A merge only ever normalizes each Content once per
// folder pair it's deduped against, so this is generous headroom rather than
// a tight budget.
const dedupeCacheSize = 4096

// MatchingDupes is the result of matching a local folder's un-matched
// children against a remote folder's un-matched children by content (§4.4).
// It's cached per local parent GUID for the lifetime of a single merge, so
// that deduping every remaining child of the same folder costs two map
// lookups instead of a fresh O(m+n) scan.
type MatchingDupes struct {
	LocalToRemote map[core.Guid]*core.Node
	RemoteToLocal map[core.Guid]*core.Node
}

// dedupeIndex normalizes Content fingerprints into comparable keys. Titles
// are Unicode-normalized (form C) so that visually identical titles encoded
// with different combining sequences still match; bookmark URLs have their
// host normalized through IDNA so that an internationalized domain entered
// differently on two devices still matches. The normalized key is hashed
// with BLAKE2b so the cache can use a fixed-size comparable key regardless
// of title or URL length.
type dedupeIndex struct {
	cache *lru.Cache
}

func newDedupeIndex() *dedupeIndex {
	return &dedupeIndex{cache: lru.New(dedupeCacheSize)}
}

// keyFor computes the dedupe key for content at the given child position.
// Bookmarks and folders are matched irrespective of position, since moving
// an item within its folder shouldn't prevent it from deduping; separators
// carry no content of their own, so position is the only thing that
// distinguishes one from another in the same folder (mirroring the
// dogear crate's WithPosition/WithoutPosition dupe-key split).
func (d *dedupeIndex) keyFor(content *core.Content, position int) string {
	base := d.normalizedKey(content)
	if content.Kind == core.ContentKindSeparator {
		return base + "@" + strconv.Itoa(position)
	}
	return base
}

func (d *dedupeIndex) normalizedKey(content *core.Content) string {
	if cached, ok := d.cache.Get(content); ok {
		return cached.(string)
	}

	var raw string
	switch content.Kind {
	case core.ContentKindBookmark:
		raw = "bookmark\x00" + normalizeTitle(content.Title) + "\x00" + normalizeURL(content.URL)
	case core.ContentKindFolder:
		raw = "folder\x00" + normalizeTitle(content.Title)
	case core.ContentKindSeparator:
		raw = "separator"
	}

	sum := blake2b.Sum256([]byte(raw))
	key := hex.EncodeToString(sum[:])
	d.cache.Add(content, key)
	return key
}

// normalizeTitle folds whitespace and Unicode form so titles that render
// identically but were typed or synced through different normalization
// paths still compare equal.
func normalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

// normalizeURL normalizes a bookmark URL's host through IDNA, so a domain
// typed as Unicode on one device and punycode on another still dedupes.
// URLs that fail to parse or whose host fails IDNA conversion are compared
// as-is; dedupe is a best-effort optimization, not a correctness
// requirement, so a normalization failure should never abort a merge.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Host != "" {
		if ascii, err := idna.Lookup.ToASCII(u.Host); err == nil {
			u.Host = ascii
		}
	}
	return u.String()
}
