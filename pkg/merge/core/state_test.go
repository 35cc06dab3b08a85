package core

import "testing"

func TestMergeStateStructureFlagsAreMonotone(t *testing.T) {
	local := NewNode("local1______", KindBookmark)
	remote := NewNode("remote1_____", KindBookmark)

	s := NewUnchangedMergeState(local, remote)
	if s.NewLocalStructure || s.NewRemoteStructure {
		t.Fatal("freshly built state shouldn't have structure flags set")
	}

	s = s.WithNewLocalStructure()
	if !s.NewLocalStructure {
		t.Error("WithNewLocalStructure should set NewLocalStructure")
	}

	s = s.WithNewRemoteStructure()
	if !s.NewLocalStructure || !s.NewRemoteStructure {
		t.Error("WithNewRemoteStructure shouldn't clear a previously set flag")
	}
}

func TestShouldApplyItemAndShouldUpload(t *testing.T) {
	local := NewNode("local1______", KindBookmark)
	remote := NewNode("remote1_____", KindBookmark)

	cases := []struct {
		state     MergeState
		applyItem bool
		upload    bool
	}{
		{NewUnchangedMergeState(local, remote), false, false},
		{NewLocalMergeState(local, remote), false, true},
		{NewRemoteMergeState(local, remote), true, false},
		{NewLocalOnlyMergeState(local), false, true},
		{NewRemoteOnlyMergeState(remote), true, false},
	}

	for _, c := range cases {
		node := NewMergedNode("merged______", c.state)
		if got := node.ShouldApplyItem(); got != c.applyItem {
			t.Errorf("%s: ShouldApplyItem() = %v, want %v", c.state.Kind, got, c.applyItem)
		}
		if got := node.ShouldUpload(); got != c.upload {
			t.Errorf("%s: ShouldUpload() = %v, want %v", c.state.Kind, got, c.upload)
		}
	}
}

func TestGuidChanged(t *testing.T) {
	local := NewNode("localguid___", KindBookmark)
	remote := NewNode("remoteguid__", KindBookmark)

	sameGuid := NewMergedNode("localguid___", NewLocalMergeState(local, remote))
	if sameGuid.LocalGuidChanged() {
		t.Error("LocalGuidChanged should be false when the merged guid matches the local guid")
	}
	if !sameGuid.RemoteGuidChanged() {
		t.Error("RemoteGuidChanged should be true when the merged guid differs from the remote guid")
	}

	onlyRemote := NewMergedNode("someguid____", NewRemoteOnlyMergeState(remote))
	if onlyRemote.LocalGuidChanged() {
		t.Error("LocalGuidChanged should be false with no local copy")
	}
}

func TestMergedRootDeletions(t *testing.T) {
	local := NewTree(RootGuid)
	remote := NewTree(RootGuid)
	root := NewMergedRoot(local, remote)

	root.DeleteLocally("deleted-both")
	root.DeleteRemotely("deleted-both")
	root.DeleteLocally("local-only__")

	if got := len(root.Deletions()); got != 2 {
		t.Errorf("Deletions() has %d entries, want 2", got)
	}
	if got := len(root.LocalDeletions()); got != 2 {
		t.Errorf("LocalDeletions() has %d entries, want 2", got)
	}
	if got := len(root.RemoteDeletions()); got != 1 {
		t.Errorf("RemoteDeletions() has %d entries, want 1", got)
	}

	root.MarkMerged("merged-item_")
	if !root.IsMerged("merged-item_") {
		t.Error("expected merged-item_ to be marked merged")
	}
	if root.IsMerged("never-merged") {
		t.Error("unmarked guid should report IsMerged = false")
	}
}
