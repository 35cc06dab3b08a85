package core

import "testing"

func TestNewRootNode(t *testing.T) {
	root := NewRootNode(RootGuid)
	if !root.IsRoot() {
		t.Error("root node should report IsRoot")
	}
	if !root.IsSyncable() {
		t.Error("root node should be syncable")
	}
	if !root.IsFolder() {
		t.Error("root node should be a folder")
	}
	if root.Content != nil {
		t.Error("root node shouldn't carry a dedupe fingerprint")
	}
}

func TestMarkBuiltInRoot(t *testing.T) {
	n := NewNode(MenuGuid, KindFolder)
	if n.IsBuiltInRoot() || n.IsSyncable() {
		t.Fatal("fresh node shouldn't be built-in or syncable")
	}
	n.MarkBuiltInRoot()
	if !n.IsBuiltInRoot() || !n.IsSyncable() {
		t.Error("MarkBuiltInRoot should imply syncable")
	}
}

func TestHasCompatibleKind(t *testing.T) {
	bookmarkA := NewNode("bookmarkaguid", KindBookmark)
	bookmarkB := NewNode("bookmarkbguid", KindBookmark)
	folder := NewNode("folderguid__", KindFolder)

	if !bookmarkA.HasCompatibleKind(bookmarkB) {
		t.Error("two bookmarks should be compatible")
	}
	if bookmarkA.HasCompatibleKind(folder) {
		t.Error("bookmark and folder shouldn't be compatible")
	}
}

func TestHasMatchingChildren(t *testing.T) {
	a := NewNode("parentaguid_", KindFolder)
	a.Children = []Guid{"child1______", "child2______"}
	b := NewNode("parentbguid_", KindFolder)
	b.Children = []Guid{"child1______", "child2______"}
	c := NewNode("parentcguid_", KindFolder)
	c.Children = []Guid{"child2______", "child1______"}

	if !a.HasMatchingChildren(b) {
		t.Error("identical child order should match")
	}
	if a.HasMatchingChildren(c) {
		t.Error("reordered children shouldn't match")
	}
}
