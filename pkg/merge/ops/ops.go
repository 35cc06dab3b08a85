// Package ops derives the concrete side effects ("completion ops") a caller
// must apply to its local and remote stores so that both converge on a
// MergedRoot (§5). The merger itself never touches storage; this package is
// the only place that translates a MergedRoot into imperative instructions.
package ops

import (
	"fmt"

	"github.com/dogear-go/dogear/pkg/merge/core"
)

// ChangeGuid instructs the caller to change a local item's GUID to the
// merged GUID. This is emitted for items deduped to a remote GUID, and for
// items whose original GUID failed validation.
type ChangeGuid struct {
	MergedNode *core.MergedNode
	// Level is the merged node's depth from the root (the root's children
	// are level 1), so a caller can apply changes in parent-before-child
	// order if its storage requires that.
	Level int
}

// LocalNode returns the local node this op changes the GUID of. It panics if
// there is none, which should be unreachable: a ChangeGuid op is only
// emitted when MergedNode.LocalGuidChanged() is true, which itself requires
// a local node to exist.
func (c ChangeGuid) LocalNode() *core.Node {
	if c.MergedNode.State.Local == nil {
		panic("ops: ChangeGuid op without a local node")
	}
	return c.MergedNode.State.Local
}

func (c ChangeGuid) String() string {
	return fmt.Sprintf("Change(%s -> %s)", c.LocalNode().Guid, c.MergedNode.Guid)
}

// ApplyRemoteItem instructs the caller to overwrite (or create) a local
// item's value fields with the remote copy's.
type ApplyRemoteItem struct {
	MergedNode *core.MergedNode
	Level      int
}

// RemoteNode returns the remote node whose fields should be applied. It
// panics if there is none; see ChangeGuid.LocalNode for why this should be
// unreachable.
func (a ApplyRemoteItem) RemoteNode() *core.Node {
	if a.MergedNode.State.Remote == nil {
		panic("ops: ApplyRemoteItem op without a remote node")
	}
	return a.MergedNode.State.Remote
}

func (a ApplyRemoteItem) String() string {
	return fmt.Sprintf("Apply(%s)", a.MergedNode.Guid)
}

// ApplyNewLocalStructure instructs the caller to set a merged child's parent
// and position in the local tree.
type ApplyNewLocalStructure struct {
	MergedNode       *core.MergedNode
	MergedParentNode *core.MergedNode
	Position         int
	Level            int
}

func (a ApplyNewLocalStructure) String() string {
	return fmt.Sprintf("Move(%s -> %s[%d])", a.MergedNode.Guid, a.MergedParentNode.Guid, a.Position)
}

// SetLocalUnmerged instructs the caller to flag a local item as having
// unmerged (unuploaded) changes.
type SetLocalUnmerged struct {
	MergedNode *core.MergedNode
}

func (s SetLocalUnmerged) String() string {
	return fmt.Sprintf("SetLocalUnmerged(%s)", s.MergedNode.Guid)
}

// SetLocalMerged instructs the caller to clear a local item's unmerged flag.
type SetLocalMerged struct {
	MergedNode *core.MergedNode
}

func (s SetLocalMerged) String() string {
	return fmt.Sprintf("SetLocalMerged(%s)", s.MergedNode.Guid)
}

// SetRemoteMerged instructs the caller to flag a remote item or tombstone as
// merged, so it isn't reconsidered on the next merge.
type SetRemoteMerged struct {
	Guid core.Guid
}

func (s SetRemoteMerged) String() string {
	return fmt.Sprintf("SetRemoteMerged(%s)", s.Guid)
}

// DeleteLocalTombstone instructs the caller to remove a local tombstone,
// because the deletion it recorded was rejected by the merge, or because
// both sides already agree the item is gone.
type DeleteLocalTombstone struct {
	Guid core.Guid
}

func (d DeleteLocalTombstone) String() string {
	return fmt.Sprintf("DeleteLocalTombstone(%s)", d.Guid)
}

// InsertLocalTombstone instructs the caller to insert a local tombstone for
// an item accepted as deleted.
type InsertLocalTombstone struct {
	RemoteNode *core.Node
}

func (i InsertLocalTombstone) String() string {
	return fmt.Sprintf("InsertLocalTombstone(%s)", i.RemoteNode.Guid)
}

// DeleteLocalItem instructs the caller to remove a local item record for an
// item the merge accepted as deleted.
type DeleteLocalItem struct {
	LocalNode *core.Node
}

func (d DeleteLocalItem) String() string {
	return fmt.Sprintf("DeleteLocalItem(%s)", d.LocalNode.Guid)
}

// UploadItem instructs the caller to upload a merged item's value and
// structure fields.
type UploadItem struct {
	MergedNode *core.MergedNode
}

func (u UploadItem) String() string {
	return fmt.Sprintf("Upload(%s)", u.MergedNode.Guid)
}

// UploadTombstone instructs the caller to upload a tombstone for a deleted
// item.
type UploadTombstone struct {
	Guid core.Guid
}

func (u UploadTombstone) String() string {
	return fmt.Sprintf("UploadTombstone(%s)", u.Guid)
}

// CompletionOps is the full set of side effects needed to bring the local
// and remote stores in line with a merge. Ops are grouped by kind rather
// than interleaved in one ordered list, so a caller can apply each group in
// whatever batch shape its storage layer prefers.
type CompletionOps struct {
	ChangeGuids            []ChangeGuid
	ApplyRemoteItems       []ApplyRemoteItem
	ApplyNewLocalStructure []ApplyNewLocalStructure
	SetLocalUnmerged       []SetLocalUnmerged
	SetLocalMerged         []SetLocalMerged
	SetRemoteMerged        []SetRemoteMerged
	DeleteLocalTombstones  []DeleteLocalTombstone
	InsertLocalTombstones  []InsertLocalTombstone
	DeleteLocalItems       []DeleteLocalItem
	UploadItems            []UploadItem
	UploadTombstones       []UploadTombstone
}

// IsEmpty reports whether there's nothing to apply.
func (o *CompletionOps) IsEmpty() bool {
	return len(o.ChangeGuids) == 0 &&
		len(o.ApplyRemoteItems) == 0 &&
		len(o.ApplyNewLocalStructure) == 0 &&
		len(o.SetLocalUnmerged) == 0 &&
		len(o.SetLocalMerged) == 0 &&
		len(o.SetRemoteMerged) == 0 &&
		len(o.DeleteLocalTombstones) == 0 &&
		len(o.InsertLocalTombstones) == 0 &&
		len(o.DeleteLocalItems) == 0 &&
		len(o.UploadItems) == 0 &&
		len(o.UploadTombstones) == 0
}

// Summarize returns a printable line for every op, in the same grouped
// order as the CompletionOps fields.
func (o *CompletionOps) Summarize() []string {
	var lines []string
	for _, op := range o.ChangeGuids {
		lines = append(lines, op.String())
	}
	for _, op := range o.ApplyRemoteItems {
		lines = append(lines, op.String())
	}
	for _, op := range o.ApplyNewLocalStructure {
		lines = append(lines, op.String())
	}
	for _, op := range o.SetLocalUnmerged {
		lines = append(lines, op.String())
	}
	for _, op := range o.SetLocalMerged {
		lines = append(lines, op.String())
	}
	for _, op := range o.SetRemoteMerged {
		lines = append(lines, op.String())
	}
	for _, op := range o.DeleteLocalTombstones {
		lines = append(lines, op.String())
	}
	for _, op := range o.InsertLocalTombstones {
		lines = append(lines, op.String())
	}
	for _, op := range o.DeleteLocalItems {
		lines = append(lines, op.String())
	}
	for _, op := range o.UploadItems {
		lines = append(lines, op.String())
	}
	for _, op := range o.UploadTombstones {
		lines = append(lines, op.String())
	}
	return lines
}

// Generate derives CompletionOps from a merged root. signal may be nil, in
// which case the walk can't be cancelled.
func Generate(root *core.MergedRoot, signal core.AbortSignal) (*CompletionOps, error) {
	if signal == nil {
		signal = core.NeverAbort
	}

	out := &CompletionOps{}
	if err := accumulate(signal, out, root.Root, root.Local, 1, false); err != nil {
		return nil, err
	}

	deleteRemotely := guidSet(root.RemoteDeletions())
	for _, guid := range root.Local.DeletedGuids() {
		if err := signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if _, rejected := deleteRemotely[guid]; rejected {
			continue
		}
		// The local tombstone was ignored: either the remote side revived
		// the item, or never knew about the deletion in the first place.
		out.DeleteLocalTombstones = append(out.DeleteLocalTombstones, DeleteLocalTombstone{Guid: guid})
		if root.Remote.IsDeleted(guid) {
			out.SetRemoteMerged = append(out.SetRemoteMerged, SetRemoteMerged{Guid: guid})
		}
	}

	deleteLocally := guidSet(root.LocalDeletions())
	for _, guid := range root.Remote.DeletedGuids() {
		if err := signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if _, rejected := deleteLocally[guid]; rejected {
			continue
		}
		if _, existsLocally := root.Local.Node(guid); existsLocally {
			continue
		}
		out.SetRemoteMerged = append(out.SetRemoteMerged, SetRemoteMerged{Guid: guid})
		if root.Local.IsDeleted(guid) {
			out.DeleteLocalTombstones = append(out.DeleteLocalTombstones, DeleteLocalTombstone{Guid: guid})
		}
	}

	for _, guid := range root.Deletions() {
		if err := signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		localNode, hasLocal := root.Local.Node(guid)
		remoteNode, hasRemote := root.Remote.Node(guid)
		switch {
		case hasLocal && hasRemote:
			// Invalid or non-syncable on both sides: delete the local item,
			// record a local tombstone, and upload a tombstone so both sides
			// learn about it.
			out.DeleteLocalItems = append(out.DeleteLocalItems, DeleteLocalItem{LocalNode: localNode})
			out.InsertLocalTombstones = append(out.InsertLocalTombstones, InsertLocalTombstone{RemoteNode: remoteNode})
			out.UploadTombstones = append(out.UploadTombstones, UploadTombstone{Guid: guid})
		case hasLocal:
			out.DeleteLocalItems = append(out.DeleteLocalItems, DeleteLocalItem{LocalNode: localNode})
			if root.Remote.IsDeleted(guid) {
				out.SetRemoteMerged = append(out.SetRemoteMerged, SetRemoteMerged{Guid: guid})
			}
		case hasRemote:
			if !root.Local.IsDeleted(guid) {
				out.InsertLocalTombstones = append(out.InsertLocalTombstones, InsertLocalTombstone{RemoteNode: remoteNode})
			}
			out.UploadTombstones = append(out.UploadTombstones, UploadTombstone{Guid: guid})
		default:
			if root.Local.IsDeleted(guid) {
				out.DeleteLocalTombstones = append(out.DeleteLocalTombstones, DeleteLocalTombstone{Guid: guid})
			}
			if root.Remote.IsDeleted(guid) {
				out.SetRemoteMerged = append(out.SetRemoteMerged, SetRemoteMerged{Guid: guid})
			}
		}
	}

	return out, nil
}

// accumulate walks the merged tree and appends ops for each child, in
// parent-before-child, left-to-right order.
func accumulate(signal core.AbortSignal, out *CompletionOps, mergedNode *core.MergedNode, localTree *core.Tree, level int, isTagging bool) error {
	for position, mergedChild := range mergedNode.MergedChildren {
		if err := signal.ErrIfAborted(); err != nil {
			return err
		}

		childIsTagging := isTagging || core.IsTaggingRoot(mergedChild.Guid)

		if mergedChild.ShouldApplyItem() {
			out.ApplyRemoteItems = append(out.ApplyRemoteItems, ApplyRemoteItem{MergedNode: mergedChild, Level: level})
		}
		if mergedChild.LocalGuidChanged() {
			out.ChangeGuids = append(out.ChangeGuids, ChangeGuid{MergedNode: mergedChild, Level: level})
		}

		// As an optimization, only emit a structure op for a child whose
		// position or parent actually changed: if the local parent already
		// has this exact child at this exact position, there's nothing to
		// apply.
		moved := true
		if localParent := mergedNode.State.Local; localParent != nil && position < len(localParent.Children) {
			if localChildAtPosition, ok := localTree.Node(localParent.Children[position]); ok {
				if mergedLocalChild := mergedChild.State.Local; mergedLocalChild != nil {
					moved = localChildAtPosition.Guid != mergedLocalChild.Guid
				}
			}
		}
		if moved {
			out.ApplyNewLocalStructure = append(out.ApplyNewLocalStructure, ApplyNewLocalStructure{
				MergedNode:       mergedChild,
				MergedParentNode: mergedNode,
				Position:         position,
				Level:            level,
			})
		}

		localNeedsMerge := mergedChild.State.Local != nil && mergedChild.State.Local.NeedsMerge
		shouldUpload := mergedChild.ShouldUpload()
		switch {
		case !localNeedsMerge && shouldUpload:
			out.SetLocalUnmerged = append(out.SetLocalUnmerged, SetLocalUnmerged{MergedNode: mergedChild})
		case localNeedsMerge && !shouldUpload:
			out.SetLocalMerged = append(out.SetLocalMerged, SetLocalMerged{MergedNode: mergedChild})
		}

		if shouldUpload && !childIsTagging {
			out.UploadItems = append(out.UploadItems, UploadItem{MergedNode: mergedChild})
		}

		if remoteChild := mergedChild.State.Remote; remoteChild != nil {
			if remoteChild.NeedsMerge && !shouldUpload {
				out.SetRemoteMerged = append(out.SetRemoteMerged, SetRemoteMerged{Guid: remoteChild.Guid})
			}
		}

		if err := accumulate(signal, out, mergedChild, localTree, level+1, childIsTagging); err != nil {
			return err
		}
	}
	return nil
}

func guidSet(guids []core.Guid) map[core.Guid]struct{} {
	set := make(map[core.Guid]struct{}, len(guids))
	for _, g := range guids {
		set[g] = struct{}{}
	}
	return set
}
