package ops

import (
	"testing"

	"github.com/dogear-go/dogear/pkg/merge"
	"github.com/dogear-go/dogear/pkg/merge/core"
	"github.com/dogear-go/dogear/pkg/merge/driver"
)

func newPairedTrees() (local, remote *core.Tree) {
	return core.NewTree(core.RootGuid), core.NewTree(core.RootGuid)
}

// TestGenerateAppliesRemoteOnlyItem covers the simplest case: an item that
// exists only remotely must be applied locally and given local structure,
// but never uploaded back.
func TestGenerateAppliesRemoteOnlyItem(t *testing.T) {
	local, remote := newPairedTrees()

	item := core.NewNode("remoteonly12", core.KindBookmark).MarkSyncable()
	item.Content = core.NewBookmarkContent("Remote", "https://remote.example/")
	remote.Insert(item, core.RootGuid)

	root, err := merge.NewMerger(local, remote, driver.NewNoop(), nil).Merge()
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	out, err := Generate(root, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(out.ApplyRemoteItems) != 1 || out.ApplyRemoteItems[0].MergedNode.Guid != "remoteonly12" {
		t.Errorf("ApplyRemoteItems = %v, want one op for remoteonly12", out.ApplyRemoteItems)
	}
	if len(out.ApplyNewLocalStructure) != 1 {
		t.Fatalf("ApplyNewLocalStructure has %d entries, want 1", len(out.ApplyNewLocalStructure))
	}
	if pos := out.ApplyNewLocalStructure[0].Position; pos != 0 {
		t.Errorf("ApplyNewLocalStructure[0].Position = %d, want 0", pos)
	}
	if len(out.ChangeGuids) != 0 {
		t.Errorf("ChangeGuids = %v, want none", out.ChangeGuids)
	}
	if len(out.UploadItems) != 0 {
		t.Errorf("UploadItems = %v, want none (remote value should never be uploaded back)", out.UploadItems)
	}
	if len(out.SetLocalUnmerged) != 0 || len(out.SetLocalMerged) != 0 {
		t.Errorf("expected no local-merged-flag ops, got SetLocalUnmerged=%v SetLocalMerged=%v", out.SetLocalUnmerged, out.SetLocalMerged)
	}
}

// TestGenerateChangesGuidAndUploadsLocalOnlyInvalidItem covers an item that
// exists only locally under an invalid GUID: the merger mints a replacement,
// and Generate must emit a ChangeGuid alongside the ordinary local-only
// upload ops, while leaving structure alone (the item hasn't moved, only its
// external identity changed).
func TestGenerateChangesGuidAndUploadsLocalOnlyInvalidItem(t *testing.T) {
	local, remote := newPairedTrees()

	invalid := core.NewNode("bad guid!!", core.KindBookmark).MarkSyncable()
	invalid.Content = core.NewBookmarkContent("Bad", "https://bad.example/")
	local.Insert(invalid, core.RootGuid)

	root, err := merge.NewMerger(local, remote, driver.NewNoop(), nil).Merge()
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	out, err := Generate(root, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(out.ChangeGuids) != 1 || out.ChangeGuids[0].LocalNode().Guid != "bad guid!!" {
		t.Errorf("ChangeGuids = %v, want one op changing bad guid!!", out.ChangeGuids)
	}
	if len(out.ApplyNewLocalStructure) != 0 {
		t.Errorf("ApplyNewLocalStructure = %v, want none (the item hasn't moved, only renamed)", out.ApplyNewLocalStructure)
	}
	if len(out.SetLocalUnmerged) != 1 {
		t.Errorf("SetLocalUnmerged = %v, want one op", out.SetLocalUnmerged)
	}
	if len(out.UploadItems) != 1 {
		t.Errorf("UploadItems = %v, want one op", out.UploadItems)
	}
}

// TestGenerateSuppressesUploadsUnderTagsRoot covers §4.1.7: items under the
// tagging root are walked and merged like any other folder, but never
// uploaded, however their merge state would otherwise demand it.
func TestGenerateSuppressesUploadsUnderTagsRoot(t *testing.T) {
	local, remote := newPairedTrees()

	tags := core.NewNode(core.TagsGuid, core.KindFolder).MarkSyncable()
	tags.Content = core.NewFolderContent("Tags")
	local.Insert(tags, core.RootGuid)

	tagged := core.NewNode("taggeditem01", core.KindBookmark).MarkSyncable()
	tagged.Content = core.NewBookmarkContent("Tagged", "https://tagged.example/")
	local.Insert(tagged, tags.Guid)

	root, err := merge.NewMerger(local, remote, driver.NewNoop(), nil).Merge()
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	out, err := Generate(root, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(out.UploadItems) != 0 {
		t.Errorf("UploadItems = %v, want none: nothing under the tags root should upload", out.UploadItems)
	}
	if len(out.SetLocalUnmerged) != 2 {
		t.Errorf("SetLocalUnmerged has %d entries, want 2 (the tags folder and its child)", len(out.SetLocalUnmerged))
	}
}

// TestGenerateDropsLocalTombstoneRejectedByRemote covers the local-tombstone
// reconciliation pass (§4.5): a local deletion the remote side never agreed
// to (and which the merge didn't separately accept) is simply dropped.
func TestGenerateDropsLocalTombstoneRejectedByRemote(t *testing.T) {
	local, remote := newPairedTrees()
	local.MarkDeleted("orphantomb12")

	root := core.NewMergedRoot(local, remote)
	root.Root = core.NewMergedNode(core.RootGuid, core.NewUnchangedMergeState(local.Root, remote.Root))

	out, err := Generate(root, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(out.DeleteLocalTombstones) != 1 || out.DeleteLocalTombstones[0].Guid != "orphantomb12" {
		t.Errorf("DeleteLocalTombstones = %v, want one op for orphantomb12", out.DeleteLocalTombstones)
	}
	if len(out.SetRemoteMerged) != 0 {
		t.Errorf("SetRemoteMerged = %v, want none (the remote side never had a tombstone to acknowledge)", out.SetRemoteMerged)
	}
}

// TestGenerateAcknowledgesRemoteTombstoneNotRevivedLocally covers the
// remote-tombstone reconciliation pass: a remote deletion that the local
// side has no surviving copy of (and didn't separately reject) should be
// acknowledged as merged.
func TestGenerateAcknowledgesRemoteTombstoneNotRevivedLocally(t *testing.T) {
	local, remote := newPairedTrees()
	remote.MarkDeleted("acceptedtom")

	root := core.NewMergedRoot(local, remote)
	root.Root = core.NewMergedNode(core.RootGuid, core.NewUnchangedMergeState(local.Root, remote.Root))

	out, err := Generate(root, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(out.SetRemoteMerged) != 1 || out.SetRemoteMerged[0].Guid != "acceptedtom" {
		t.Errorf("SetRemoteMerged = %v, want one op for acceptedtom", out.SetRemoteMerged)
	}
	if len(out.DeleteLocalTombstones) != 0 {
		t.Errorf("DeleteLocalTombstones = %v, want none (the local side had no tombstone to remove)", out.DeleteLocalTombstones)
	}
}

// TestGenerateDeletionMatrixCoversAllFourCases exercises the four branches of
// the final accepted-deletion sweep (§4.5 step 3): an item rejected as
// invalid/non-syncable on both sides, one that only the local side still has
// a copy of, one that only the remote side still has a copy of, and a
// deletion both sides had already agreed on before the merge even ran.
func TestGenerateDeletionMatrixCoversAllFourCases(t *testing.T) {
	local, remote := newPairedTrees()

	// Both sides still have a copy: delete outright and tombstone both ways.
	both := core.NewNode("bothsidesitm", core.KindBookmark)
	local.Insert(both, core.RootGuid)
	remoteBoth := core.NewNode("bothsidesitm", core.KindBookmark)
	remote.Insert(remoteBoth, core.RootGuid)

	// Local side still has a copy; the remote side had already tombstoned it.
	localOnly := core.NewNode("localsideitm", core.KindBookmark)
	local.Insert(localOnly, core.RootGuid)
	remote.MarkDeleted("localsideitm")

	// Remote side still has a copy; local has no tombstone for it yet.
	remoteOnly := core.NewNode("remotesideit", core.KindBookmark)
	remote.Insert(remoteOnly, core.RootGuid)

	// Neither side has a copy: both already agree it's gone.
	local.MarkDeleted("agreedgoneit")
	remote.MarkDeleted("agreedgoneit")

	root := core.NewMergedRoot(local, remote)
	root.Root = core.NewMergedNode(core.RootGuid, core.NewUnchangedMergeState(local.Root, remote.Root))
	root.DeleteLocally("bothsidesitm")
	root.DeleteRemotely("bothsidesitm")
	root.DeleteLocally("localsideitm")
	root.DeleteRemotely("remotesideit")
	root.DeleteLocally("agreedgoneit")
	root.DeleteRemotely("agreedgoneit")

	out, err := Generate(root, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	deleteLocalGuids := make(map[core.Guid]bool)
	for _, op := range out.DeleteLocalItems {
		deleteLocalGuids[op.LocalNode.Guid] = true
	}
	if !deleteLocalGuids["bothsidesitm"] || !deleteLocalGuids["localsideitm"] {
		t.Errorf("DeleteLocalItems = %v, want bothsidesitm and localsideitm", out.DeleteLocalItems)
	}
	if deleteLocalGuids["remotesideit"] || deleteLocalGuids["agreedgoneit"] {
		t.Errorf("DeleteLocalItems = %v, want neither remotesideit nor agreedgoneit (no local copy exists)", out.DeleteLocalItems)
	}

	insertTombstoneGuids := make(map[core.Guid]bool)
	for _, op := range out.InsertLocalTombstones {
		insertTombstoneGuids[op.RemoteNode.Guid] = true
	}
	if !insertTombstoneGuids["bothsidesitm"] || !insertTombstoneGuids["remotesideit"] {
		t.Errorf("InsertLocalTombstones = %v, want bothsidesitm and remotesideit", out.InsertLocalTombstones)
	}

	uploadTombstoneGuids := make(map[core.Guid]bool)
	for _, op := range out.UploadTombstones {
		uploadTombstoneGuids[op.Guid] = true
	}
	if !uploadTombstoneGuids["bothsidesitm"] || !uploadTombstoneGuids["remotesideit"] {
		t.Errorf("UploadTombstones = %v, want bothsidesitm and remotesideit", out.UploadTombstones)
	}

	setRemoteMergedGuids := make(map[core.Guid]bool)
	for _, op := range out.SetRemoteMerged {
		setRemoteMergedGuids[op.Guid] = true
	}
	if !setRemoteMergedGuids["localsideitm"] {
		t.Errorf("SetRemoteMerged = %v, want localsideitm acknowledged (the remote already tombstoned it)", out.SetRemoteMerged)
	}

	deleteLocalTombstoneGuids := make(map[core.Guid]bool)
	for _, op := range out.DeleteLocalTombstones {
		deleteLocalTombstoneGuids[op.Guid] = true
	}
	if !deleteLocalTombstoneGuids["agreedgoneit"] {
		t.Errorf("DeleteLocalTombstones = %v, want agreedgoneit cleaned up", out.DeleteLocalTombstones)
	}
	if !setRemoteMergedGuids["agreedgoneit"] {
		t.Errorf("SetRemoteMerged = %v, want agreedgoneit acknowledged on both sides", out.SetRemoteMerged)
	}
}

// TestCompletionOpsIsEmptyAndSummarize covers the small reporting helpers
// alongside the generator: an empty result reports IsEmpty, and Summarize
// produces one line per op in field order.
func TestCompletionOpsIsEmptyAndSummarize(t *testing.T) {
	var empty CompletionOps
	if !empty.IsEmpty() {
		t.Error("zero-value CompletionOps should be empty")
	}

	ops := &CompletionOps{
		UploadTombstones: []UploadTombstone{{Guid: "somegoneitem"}},
	}
	if ops.IsEmpty() {
		t.Error("CompletionOps with an UploadTombstone should not be empty")
	}
	lines := ops.Summarize()
	if len(lines) != 1 || lines[0] != "UploadTombstone(somegoneitem)" {
		t.Errorf("Summarize() = %v, want [\"UploadTombstone(somegoneitem)\"]", lines)
	}
}
