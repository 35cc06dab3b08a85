package core

// Validity classifies how to treat an item whose observed fields are not
// sync-correct (§3.1, GLOSSARY).
type Validity uint8

const (
	// ValidityValid indicates the item can be used as-is.
	ValidityValid Validity = iota
	// ValidityReupload indicates the item should be kept, but reuploaded.
	ValidityReupload
	// ValidityReplace indicates the item should be discarded in favor of the
	// other side, or deleted if neither side has a valid copy.
	ValidityReplace
)

// String implements fmt.Stringer.
func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityReupload:
		return "reupload"
	case ValidityReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Kind identifies the bookmark item kind (§3.1).
type Kind uint8

const (
	KindBookmark Kind = iota
	KindFolder
	KindQuery
	KindSeparator
	KindLivemark
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindBookmark:
		return "bookmark"
	case KindFolder:
		return "folder"
	case KindQuery:
		return "query"
	case KindSeparator:
		return "separator"
	case KindLivemark:
		return "livemark"
	default:
		return "unknown"
	}
}

// HasCompatibleKind reports whether two kinds may be merged as the same
// logical item. A GUID that refers to incompatible kinds on both sides is a
// MismatchedItemKind error (§4.1.1 precondition, §6.3).
func (k Kind) HasCompatibleKind(other Kind) bool {
	return k == other
}

// IsFolder reports whether the kind is a folder (used for child-walking and
// for the "non-folder revive" distinction in §4.1.7).
func (k Kind) IsFolder() bool {
	return k == KindFolder
}
