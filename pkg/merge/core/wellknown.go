package core

// Well-known GUIDs for Firefox Sync's built-in bookmark roots (§3.1). These
// are padded to the fixed 12-character Sync GUID length with underscores,
// matching the convention used by every other Sync-minted GUID.
const (
	RootGuid    Guid = "root________"
	MenuGuid    Guid = "menu________"
	ToolbarGuid Guid = "toolbar_____"
	UnfiledGuid Guid = "unfiled_____"
	MobileGuid  Guid = "mobile______"
	TagsGuid    Guid = "tags________"
)

// IsTaggingRoot reports whether guid is the root of the subtree that holds
// tag folders. Tag folders are real nodes the merger walks and reconciles
// like any other folder, but they aren't part of the synced bookmark
// structure: completion op generation never emits an UploadItem for the
// tagging root or anything under it. Other ops, including structure ops,
// are emitted for them as for any other item.
func IsTaggingRoot(guid Guid) bool {
	return guid == TagsGuid
}
