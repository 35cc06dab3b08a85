// Package merge implements the two-way bookmark tree merger: given a local
// and a remote Tree, it builds a single merged tree that reconciles every
// item and structural change on both sides, without access to either side's
// history (§2, §4).
package merge

import (
	"github.com/dogear-go/dogear/pkg/merge/core"
)

// structureChange is the outcome of checking whether a node survived on the
// other side unmoved, moved, or was deleted there (§4.1.4).
type structureChange uint8

const (
	structureChangeUnchanged structureChange = iota
	structureChangeMoved
	structureChangeDeleted
)

// Merger merges a local and remote Tree into a MergedRoot. It's built fresh
// for each merge; all of its state is scoped to a single Merge call, the way
// the teacher's reconciler is built fresh for each synchronization cycle
// rather than reused across cycles.
type Merger struct {
	driver core.Driver
	signal core.AbortSignal

	localTree  *core.Tree
	remoteTree *core.Tree

	dedupe                         *dedupeIndex
	matchingDupesByLocalParentGuid map[core.Guid]*MatchingDupes

	mergedGuids    map[core.Guid]struct{}
	deleteLocally  map[core.Guid]struct{}
	deleteRemotely map[core.Guid]struct{}

	counts core.StructureCounts
}

// NewMerger builds a Merger over the given trees. driver supplies GUID
// minting and logging; signal lets the caller cancel a long merge
// cooperatively. signal may be nil, in which case core.NeverAbort is
// substituted; driver is used as given, and a nil driver is not replaced.
func NewMerger(localTree, remoteTree *core.Tree, driver core.Driver, signal core.AbortSignal) *Merger {
	if signal == nil {
		signal = core.NeverAbort
	}
	return &Merger{
		driver:                         driver,
		signal:                         signal,
		localTree:                      localTree,
		remoteTree:                     remoteTree,
		dedupe:                         newDedupeIndex(),
		matchingDupesByLocalParentGuid: make(map[core.Guid]*MatchingDupes),
		mergedGuids:                    make(map[core.Guid]struct{}),
		deleteLocally:                  make(map[core.Guid]struct{}),
		deleteRemotely:                 make(map[core.Guid]struct{}),
	}
}

// Merge builds the merged tree. It fails with a *core.MismatchedItemKindError
// if a GUID refers to incompatible kinds on each side, with a
// *core.DuplicateItemError if GUID minting produces a collision, with
// *core.UnmergedLocalItemsError / *core.UnmergedRemoteItemsError if the walk
// somehow failed to account for every node in either tree, or with
// core.ErrAborted if the AbortSignal fires mid-walk.
func (m *Merger) Merge() (*core.MergedRoot, error) {
	mergedRootNode, err := m.twoWayMerge(m.localTree.Root, m.remoteTree.Root)
	if err != nil {
		return nil, err
	}

	// Any remaining tombstones on one side with nothing matching them on
	// the other side mean the other side never learned about the deletion.
	for _, guid := range m.localTree.DeletedGuids() {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if !m.mentions(guid) {
			m.deleteRemotely[guid] = struct{}{}
		}
	}
	for _, guid := range m.remoteTree.DeletedGuids() {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if !m.mentions(guid) {
			m.deleteLocally[guid] = struct{}{}
		}
	}

	// The merged tree must account for every item mentioned by either
	// source tree. Anything left over means the walk missed a node, which
	// is a bug in the merger rather than bad input.
	var unmergedLocal []core.Guid
	for _, guid := range m.localTree.Guids() {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if !m.mentions(guid) {
			unmergedLocal = append(unmergedLocal, guid)
		}
	}
	if len(unmergedLocal) > 0 {
		return nil, &core.UnmergedLocalItemsError{Guids: unmergedLocal}
	}
	var unmergedRemote []core.Guid
	for _, guid := range m.remoteTree.Guids() {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if !m.mentions(guid) {
			unmergedRemote = append(unmergedRemote, guid)
		}
	}
	if len(unmergedRemote) > 0 {
		return nil, &core.UnmergedRemoteItemsError{Guids: unmergedRemote}
	}

	root := core.NewMergedRoot(m.localTree, m.remoteTree)
	root.Root = mergedRootNode
	for guid := range m.mergedGuids {
		root.MarkMerged(guid)
	}
	for guid := range m.deleteLocally {
		root.DeleteLocally(guid)
	}
	for guid := range m.deleteRemotely {
		root.DeleteRemotely(guid)
	}
	root.Counts = m.counts
	return root, nil
}

func (m *Merger) mentions(guid core.Guid) bool {
	if _, ok := m.mergedGuids[guid]; ok {
		return true
	}
	if _, ok := m.deleteLocally[guid]; ok {
		return true
	}
	if _, ok := m.deleteRemotely[guid]; ok {
		return true
	}
	return false
}

// claimReplacementGuid asks the driver for a replacement for oldGuid and
// records the new GUID as merged, failing if it was already merged. The
// returned bool reports whether the GUID actually changed; callers on the
// remote side use it to decide whether a tombstone is owed for oldGuid.
func (m *Merger) claimReplacementGuid(oldGuid core.Guid) (core.Guid, bool, error) {
	if err := m.signal.ErrIfAborted(); err != nil {
		return "", false, err
	}
	newGuid, err := m.driver.GenerateNewGuid(oldGuid)
	if err != nil {
		return "", false, err
	}
	if newGuid == oldGuid {
		return newGuid, false, nil
	}
	if _, exists := m.mergedGuids[newGuid]; exists {
		return "", false, &core.DuplicateItemError{Guid: newGuid}
	}
	m.mergedGuids[newGuid] = struct{}{}
	return newGuid, true, nil
}

func (m *Merger) mergeLocalOnlyNode(localNode *core.Node) (*core.MergedNode, error) {
	m.driver.Trace("item %s only exists locally", localNode.Guid)

	m.mergedGuids[localNode.Guid] = struct{}{}

	mergedGuid := localNode.Guid
	if !core.IsValidGuid(localNode.Guid) {
		m.driver.Warn("generating new guid for local node %s", localNode.Guid)
		newGuid, _, err := m.claimReplacementGuid(localNode.Guid)
		if err != nil {
			return nil, err
		}
		mergedGuid = newGuid
	}

	mergedNode := core.NewMergedNode(mergedGuid, core.NewLocalOnlyMergeState(localNode))

	// The local folder doesn't exist remotely, but its children might, so
	// we still need to walk and merge them.
	for _, localChild := range m.localTree.ChildNodes(localNode) {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if err := m.mergeLocalChildIntoMergedNode(mergedNode, localNode, nil, localChild); err != nil {
			return nil, err
		}
	}

	if localNode.Diverged {
		mergedNode.State = mergedNode.State.WithNewLocalStructure()
	}

	return mergedNode, nil
}

func (m *Merger) mergeRemoteOnlyNode(remoteNode *core.Node) (*core.MergedNode, error) {
	m.driver.Trace("item %s only exists remotely", remoteNode.Guid)

	m.mergedGuids[remoteNode.Guid] = struct{}{}

	mergedGuid := remoteNode.Guid
	if !core.IsValidGuid(remoteNode.Guid) {
		m.driver.Warn("generating new guid for remote node %s", remoteNode.Guid)
		newGuid, changed, err := m.claimReplacementGuid(remoteNode.Guid)
		if err != nil {
			return nil, err
		}
		if changed {
			m.deleteRemotely[remoteNode.Guid] = struct{}{}
		}
		mergedGuid = newGuid
	}

	mergedNode := core.NewMergedNode(mergedGuid, core.NewRemoteOnlyMergeState(remoteNode))

	for _, remoteChild := range m.remoteTree.ChildNodes(remoteNode) {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if err := m.mergeRemoteChildIntoMergedNode(mergedNode, nil, remoteNode, remoteChild); err != nil {
			return nil, err
		}
	}

	if remoteNode.Diverged || mergedNode.RemoteGuidChanged() || remoteNode.Validity != core.ValidityValid {
		mergedNode.State = mergedNode.State.WithNewRemoteStructure()
	}

	return mergedNode, nil
}

// twoWayMerge merges two nodes that exist on both sides.
func (m *Merger) twoWayMerge(localNode, remoteNode *core.Node) (*core.MergedNode, error) {
	m.driver.Trace("item exists locally as %s and remotely as %s", localNode.Guid, remoteNode.Guid)

	if !localNode.HasCompatibleKind(remoteNode) {
		m.driver.Error("merging local %s and remote %s with different kinds", localNode.Guid, remoteNode.Guid)
		return nil, &core.MismatchedItemKindError{Guid: localNode.Guid, Local: localNode.Kind, Remote: remoteNode.Kind}
	}

	m.mergedGuids[localNode.Guid] = struct{}{}
	m.mergedGuids[remoteNode.Guid] = struct{}{}

	mergedGuid := remoteNode.Guid
	if !core.IsValidGuid(remoteNode.Guid) {
		m.driver.Warn("generating new valid guid for node %s", remoteNode.Guid)
		newGuid, changed, err := m.claimReplacementGuid(remoteNode.Guid)
		if err != nil {
			return nil, err
		}
		if changed {
			m.deleteRemotely[remoteNode.Guid] = struct{}{}
		}
		mergedGuid = newGuid
	}

	item, children := m.resolveValueConflict(localNode, remoteNode)

	var state core.MergeState
	switch item {
	case core.SideLocal:
		state = core.NewLocalMergeState(localNode, remoteNode)
	case core.SideRemote:
		state = core.NewRemoteMergeState(localNode, remoteNode)
	default:
		state = core.NewUnchangedMergeState(localNode, remoteNode)
	}
	mergedNode := core.NewMergedNode(mergedGuid, state)

	switch children {
	case core.SideLocal:
		for _, localChild := range m.localTree.ChildNodes(localNode) {
			if err := m.signal.ErrIfAborted(); err != nil {
				return nil, err
			}
			if err := m.mergeLocalChildIntoMergedNode(mergedNode, localNode, remoteNode, localChild); err != nil {
				return nil, err
			}
		}
		for _, remoteChild := range m.remoteTree.ChildNodes(remoteNode) {
			if err := m.signal.ErrIfAborted(); err != nil {
				return nil, err
			}
			if err := m.mergeRemoteChildIntoMergedNode(mergedNode, localNode, remoteNode, remoteChild); err != nil {
				return nil, err
			}
		}
	case core.SideRemote:
		for _, remoteChild := range m.remoteTree.ChildNodes(remoteNode) {
			if err := m.signal.ErrIfAborted(); err != nil {
				return nil, err
			}
			if err := m.mergeRemoteChildIntoMergedNode(mergedNode, localNode, remoteNode, remoteChild); err != nil {
				return nil, err
			}
		}
		for _, localChild := range m.localTree.ChildNodes(localNode) {
			if err := m.signal.ErrIfAborted(); err != nil {
				return nil, err
			}
			if err := m.mergeLocalChildIntoMergedNode(mergedNode, localNode, remoteNode, localChild); err != nil {
				return nil, err
			}
		}
	default:
		// The children are the same, so we only need to merge one side.
		localChildren := m.localTree.ChildNodes(localNode)
		remoteChildren := m.remoteTree.ChildNodes(remoteNode)
		count := len(localChildren)
		if len(remoteChildren) < count {
			count = len(remoteChildren)
		}
		for i := 0; i < count; i++ {
			if err := m.signal.ErrIfAborted(); err != nil {
				return nil, err
			}
			if err := m.mergeUnchangedChildIntoMergedNode(mergedNode, localNode, localChildren[i], remoteNode, remoteChildren[i]); err != nil {
				return nil, err
			}
		}
	}

	if localNode.Diverged {
		mergedNode.State = mergedNode.State.WithNewLocalStructure()
	}
	if remoteNode.Diverged || remoteNode.Validity != core.ValidityValid {
		mergedNode.State = mergedNode.State.WithNewRemoteStructure()
	}

	return mergedNode, nil
}

// mergeUnchangedChildIntoMergedNode merges two nodes with the same parents
// and positions on both sides. Unlike moved or one-sided items, these can be
// merged directly, but they might still have been deleted or marked
// non-syncable on one side.
func (m *Merger) mergeUnchangedChildIntoMergedNode(mergedNode *core.MergedNode, localParent, localChild, remoteParent, remoteChild *core.Node) error {
	localChange, err := m.checkForLocalStructureChangeOfRemoteNode(mergedNode, remoteParent, remoteChild)
	if err != nil {
		return err
	}
	remoteChange, err := m.checkForRemoteStructureChangeOfLocalNode(mergedNode, localParent, localChild)
	if err != nil {
		return err
	}

	switch {
	case localChange == structureChangeDeleted && remoteChange == structureChangeDeleted:
		mergedNode.State = mergedNode.State.WithNewLocalStructure().WithNewRemoteStructure()
	case localChange == structureChangeDeleted:
		mergedNode.State = mergedNode.State.WithNewRemoteStructure()
	case remoteChange == structureChangeDeleted:
		mergedNode.State = mergedNode.State.WithNewLocalStructure()
	default:
		mergedChild, err := m.twoWayMerge(localChild, remoteChild)
		if err != nil {
			return err
		}
		if mergedChild.LocalGuidChanged() {
			mergedChild.State = mergedChild.State.WithNewLocalStructure()
		}
		if mergedNode.RemoteGuidChanged() {
			mergedChild.State = mergedChild.State.WithNewRemoteStructure()
		}
		if mergedChild.RemoteGuidChanged() {
			mergedNode.State = mergedNode.State.WithNewRemoteStructure()
		}
		mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
		m.counts.MergedNodes++
	}

	return nil
}

// mergeRemoteChildIntoMergedNode merges a remote child of remoteParent into
// mergedNode. This is the inverse of mergeLocalChildIntoMergedNode.
func (m *Merger) mergeRemoteChildIntoMergedNode(mergedNode *core.MergedNode, localParent, remoteParent, remoteChild *core.Node) error {
	if _, ok := m.mergedGuids[remoteChild.Guid]; ok {
		m.driver.Trace("remote child %s already seen in another folder and merged", remoteChild.Guid)
		mergedNode.State = mergedNode.State.WithNewRemoteStructure()
		return nil
	}

	m.driver.Trace("merging remote child %s of %s into %s", remoteChild.Guid, remoteParent.Guid, mergedNode.Guid)

	change, err := m.checkForLocalStructureChangeOfRemoteNode(mergedNode, remoteParent, remoteChild)
	if err != nil {
		return err
	}
	if change == structureChangeDeleted {
		mergedNode.State = mergedNode.State.WithNewRemoteStructure()
		return nil
	}

	if localChild, ok := m.localTree.Node(remoteChild.Guid); ok {
		localParentOfChild, _ := m.localTree.ParentNode(localChild)

		m.driver.Trace("remote child %s exists locally in %s and remotely in %s", remoteChild.Guid, localParentOfChild.Guid, remoteParent.Guid)

		if m.remoteTree.IsDeleted(localParentOfChild.Guid) {
			m.driver.Trace("unconditionally taking remote move for %s because local parent %s is deleted remotely", remoteChild.Guid, localParentOfChild.Guid)
			mergedChild, err := m.twoWayMerge(localChild, remoteChild)
			if err != nil {
				return err
			}
			mergedChild.State = mergedChild.State.WithNewLocalStructure()
			if mergedNode.RemoteGuidChanged() {
				mergedChild.State = mergedChild.State.WithNewRemoteStructure()
			}
			if mergedChild.RemoteGuidChanged() {
				mergedNode.State = mergedNode.State.WithNewRemoteStructure()
			}
			mergedNode.State = mergedNode.State.WithNewLocalStructure()
			mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
			m.counts.MergedNodes++
			return nil
		}

		switch m.resolveStructureConflict(localParentOfChild, localChild, remoteParent, remoteChild) {
		case core.SideLocal:
			m.driver.Trace("remote child %s moved on both sides; keeping newer local parent and position", remoteChild.Guid)
			mergedNode.State = mergedNode.State.WithNewRemoteStructure()
		default:
			var mergedChild *core.MergedNode
			if localParentOfChild.Guid != remoteParent.Guid {
				m.driver.Trace("remote child %s reparented on both sides; keeping newer remote parent", remoteChild.Guid)
				mergedChild, err = m.twoWayMerge(localChild, remoteChild)
				if err != nil {
					return err
				}
				mergedChild.State = mergedChild.State.WithNewLocalStructure()
			} else {
				m.driver.Trace("remote child %s repositioned on both sides; keeping newer remote position", remoteChild.Guid)
				mergedChild, err = m.twoWayMerge(localChild, remoteChild)
				if err != nil {
					return err
				}
			}
			if mergedChild.LocalGuidChanged() {
				mergedChild.State = mergedChild.State.WithNewLocalStructure()
			}
			if mergedNode.RemoteGuidChanged() {
				mergedChild.State = mergedChild.State.WithNewRemoteStructure()
			}
			if mergedChild.RemoteGuidChanged() {
				mergedNode.State = mergedNode.State.WithNewRemoteStructure()
			}
			mergedNode.State = mergedNode.State.WithNewLocalStructure()
			mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
			m.counts.MergedNodes++
		}

		return nil
	}

	// The remote child isn't a root and doesn't exist locally. Look for a
	// content match in the containing folder.
	m.driver.Trace("remote child %s doesn't exist locally; looking for local content match", remoteChild.Guid)

	matchByContent, err := m.findLocalNodeMatchingRemoteNode(mergedNode, localParent, remoteParent, remoteChild)
	if err != nil {
		return err
	}
	var mergedChild *core.MergedNode
	if matchByContent != nil {
		mergedChild, err = m.twoWayMerge(matchByContent, remoteChild)
	} else {
		mergedChild, err = m.mergeRemoteOnlyNode(remoteChild)
	}
	if err != nil {
		return err
	}
	if mergedChild.LocalGuidChanged() {
		mergedChild.State = mergedChild.State.WithNewLocalStructure()
	}
	if mergedNode.RemoteGuidChanged() {
		mergedChild.State = mergedChild.State.WithNewRemoteStructure()
	}
	if mergedChild.RemoteGuidChanged() {
		mergedNode.State = mergedNode.State.WithNewRemoteStructure()
	}
	mergedNode.State = mergedNode.State.WithNewLocalStructure()
	mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
	m.counts.MergedNodes++
	return nil
}

// mergeLocalChildIntoMergedNode merges a local child of localParent into
// mergedNode. This is the inverse of mergeRemoteChildIntoMergedNode.
func (m *Merger) mergeLocalChildIntoMergedNode(mergedNode *core.MergedNode, localParent, remoteParent, localChild *core.Node) error {
	if _, ok := m.mergedGuids[localChild.Guid]; ok {
		m.driver.Trace("local child %s already seen in another folder and merged", localChild.Guid)
		mergedNode.State = mergedNode.State.WithNewLocalStructure()
		return nil
	}

	m.driver.Trace("merging local child %s of %s into %s", localChild.Guid, localParent.Guid, mergedNode.Guid)

	change, err := m.checkForRemoteStructureChangeOfLocalNode(mergedNode, localParent, localChild)
	if err != nil {
		return err
	}
	if change == structureChangeDeleted {
		mergedNode.State = mergedNode.State.WithNewLocalStructure()
		return nil
	}

	if remoteChild, ok := m.remoteTree.Node(localChild.Guid); ok {
		remoteParentOfChild, _ := m.remoteTree.ParentNode(remoteChild)

		m.driver.Trace("local child %s exists locally in %s and remotely in %s", localChild.Guid, localParent.Guid, remoteParentOfChild.Guid)

		if m.localTree.IsDeleted(remoteParentOfChild.Guid) {
			m.driver.Trace("unconditionally taking local move for %s because remote parent %s is deleted locally", localChild.Guid, remoteParentOfChild.Guid)
			mergedChild, err := m.twoWayMerge(localChild, remoteChild)
			if err != nil {
				return err
			}
			if mergedChild.LocalGuidChanged() {
				mergedChild.State = mergedChild.State.WithNewLocalStructure()
			}
			mergedNode.State = mergedNode.State.WithNewRemoteStructure()
			mergedChild.State = mergedChild.State.WithNewRemoteStructure()
			mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
			m.counts.MergedNodes++
			return nil
		}

		switch m.resolveStructureConflict(localParent, localChild, remoteParentOfChild, remoteChild) {
		case core.SideLocal:
			if localParent.Guid != remoteParentOfChild.Guid {
				m.driver.Trace("local child %s reparented on both sides; keeping newer local parent", localChild.Guid)
				mergedChild, err := m.twoWayMerge(localChild, remoteChild)
				if err != nil {
					return err
				}
				if mergedChild.LocalGuidChanged() {
					mergedChild.State = mergedChild.State.WithNewLocalStructure()
				}
				mergedNode.State = mergedNode.State.WithNewRemoteStructure()
				mergedChild.State = mergedChild.State.WithNewRemoteStructure()
				mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
				m.counts.MergedNodes++
			} else {
				m.driver.Trace("local child %s repositioned on both sides; keeping newer local position", localChild.Guid)
				mergedChild, err := m.twoWayMerge(localChild, remoteChild)
				if err != nil {
					return err
				}
				if mergedChild.LocalGuidChanged() {
					mergedChild.State = mergedChild.State.WithNewLocalStructure()
				}
				mergedNode.State = mergedNode.State.WithNewRemoteStructure()
				if mergedNode.RemoteGuidChanged() {
					mergedChild.State = mergedChild.State.WithNewRemoteStructure()
				}
				mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
				m.counts.MergedNodes++
			}
		default:
			if localParent.Guid != remoteParentOfChild.Guid {
				m.driver.Trace("local child %s reparented on both sides; keeping newer remote parent", localChild.Guid)
			} else {
				m.driver.Trace("local child %s repositioned on both sides; keeping newer remote position", localChild.Guid)
			}
			mergedNode.State = mergedNode.State.WithNewLocalStructure()
		}

		return nil
	}

	// The local child isn't a root and doesn't exist remotely. Look for a
	// content match in the containing folder.
	m.driver.Trace("local child %s doesn't exist remotely; looking for remote content match", localChild.Guid)

	matchByContent, err := m.findRemoteNodeMatchingLocalNode(mergedNode, localParent, remoteParent, localChild)
	if err != nil {
		return err
	}

	var mergedChild *core.MergedNode
	if matchByContent != nil {
		mergedChild, err = m.twoWayMerge(localChild, matchByContent)
		if err != nil {
			return err
		}
		if mergedChild.LocalGuidChanged() {
			mergedChild.State = mergedChild.State.WithNewLocalStructure()
		}
		if mergedNode.RemoteGuidChanged() {
			mergedChild.State = mergedChild.State.WithNewRemoteStructure()
		}
		if mergedChild.RemoteGuidChanged() {
			mergedNode.State = mergedNode.State.WithNewRemoteStructure()
		}
		mergedNode.State = mergedNode.State.WithNewLocalStructure()
	} else {
		mergedChild, err = m.mergeLocalOnlyNode(localChild)
		if err != nil {
			return err
		}
		if mergedChild.LocalGuidChanged() {
			mergedChild.State = mergedChild.State.WithNewLocalStructure()
		}
		mergedNode.State = mergedNode.State.WithNewRemoteStructure()
		mergedChild.State = mergedChild.State.WithNewRemoteStructure()
	}
	mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedChild)
	m.counts.MergedNodes++
	return nil
}

// resolveValueConflict decides which side's item value wins, and which
// side's children should be walked first, for an item that exists on both
// sides (§4.3).
func (m *Merger) resolveValueConflict(localNode, remoteNode *core.Node) (item, children core.Side) {
	if remoteNode.IsRoot() {
		return core.SideUnchanged, core.SideLocal
	}

	switch {
	case localNode.NeedsMerge && remoteNode.NeedsMerge:
		if localNode.IsBuiltInRoot() {
			item = core.SideLocal
		} else {
			switch {
			case localNode.Validity == core.ValidityReplace && remoteNode.Validity == core.ValidityReplace:
				item = core.SideUnchanged
			case localNode.Validity == core.ValidityReplace:
				item = core.SideRemote
			case remoteNode.Validity == core.ValidityReplace:
				item = core.SideLocal
			case localNode.Age < remoteNode.Age:
				item = core.SideLocal
			default:
				item = core.SideRemote
			}
		}
		switch {
		case localNode.HasMatchingChildren(remoteNode):
			children = core.SideUnchanged
		case localNode.Age < remoteNode.Age:
			children = core.SideLocal
		default:
			children = core.SideRemote
		}

	case localNode.NeedsMerge:
		if localNode.Validity == core.ValidityReplace {
			item = core.SideRemote
		} else {
			item = core.SideLocal
		}
		if localNode.HasMatchingChildren(remoteNode) {
			children = core.SideUnchanged
		} else {
			children = core.SideLocal
		}

	case remoteNode.NeedsMerge:
		switch {
		case localNode.IsBuiltInRoot():
			item = core.SideUnchanged
		case remoteNode.Validity == core.ValidityReplace:
			item = core.SideLocal
		default:
			item = core.SideRemote
		}
		if localNode.HasMatchingChildren(remoteNode) {
			children = core.SideUnchanged
		} else {
			children = core.SideRemote
		}

	default:
		switch {
		case localNode.Validity == core.ValidityReplace && remoteNode.Validity == core.ValidityReplace:
			item = core.SideUnchanged
		case remoteNode.Validity == core.ValidityReplace:
			item = core.SideLocal
		case localNode.Validity == core.ValidityReplace:
			item = core.SideRemote
		default:
			item = core.SideUnchanged
		}
		switch {
		case localNode.HasMatchingChildren(remoteNode):
			children = core.SideUnchanged
		case localNode.Age < remoteNode.Age:
			children = core.SideLocal
		default:
			children = core.SideRemote
		}
	}

	return item, children
}

// resolveStructureConflict decides which side's parent and position to keep
// for a child that exists in different places on each side (§4.3).
func (m *Merger) resolveStructureConflict(localParent, localChild, remoteParent, remoteChild *core.Node) core.Side {
	if remoteChild.IsBuiltInRoot() {
		return core.SideLocal
	}

	switch {
	case localParent.NeedsMerge && remoteParent.NeedsMerge:
		latestLocalAge := minAge(localChild.Age, localParent.Age)
		latestRemoteAge := minAge(remoteChild.Age, remoteParent.Age)
		if latestLocalAge < latestRemoteAge {
			return core.SideLocal
		}
		return core.SideRemote
	case localParent.NeedsMerge:
		return core.SideLocal
	case remoteParent.NeedsMerge:
		return core.SideRemote
	default:
		return core.SideUnchanged
	}
}

func minAge(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// checkForLocalStructureChangeOfRemoteNode checks whether remoteNode was
// moved or deleted locally, deleting it remotely and relocating any
// surviving remote descendants if so. It's the inverse of
// checkForRemoteStructureChangeOfLocalNode.
func (m *Merger) checkForLocalStructureChangeOfRemoteNode(mergedNode *core.MergedNode, remoteParent, remoteNode *core.Node) (structureChange, error) {
	if !remoteNode.IsSyncable() {
		m.driver.Trace("deleting non-syncable remote node %s", remoteNode.Guid)
		return m.deleteRemoteNode(mergedNode, remoteNode)
	}

	if !m.localTree.IsDeleted(remoteNode.Guid) {
		if localNode, ok := m.localTree.Node(remoteNode.Guid); ok {
			if !localNode.IsSyncable() {
				m.driver.Trace("remote node %s is syncable, but local node isn't; deleting", remoteNode.Guid)
				return m.deleteRemoteNode(mergedNode, remoteNode)
			}
			if localNode.Validity == core.ValidityReplace && remoteNode.Validity == core.ValidityReplace {
				return m.deleteRemoteNode(mergedNode, remoteNode)
			}
			localParent, _ := m.localTree.ParentNode(localNode)
			if localParent.Guid != remoteParent.Guid {
				return structureChangeMoved, nil
			}
			return structureChangeUnchanged, nil
		}
		if remoteNode.Validity == core.ValidityReplace {
			return m.deleteRemoteNode(mergedNode, remoteNode)
		}
		return structureChangeUnchanged, nil
	}

	if remoteNode.Validity == core.ValidityReplace {
		return m.deleteRemoteNode(mergedNode, remoteNode)
	}
	if remoteNode.IsBuiltInRoot() {
		return structureChangeUnchanged, nil
	}

	if remoteNode.NeedsMerge {
		if !remoteNode.IsFolder() {
			m.driver.Trace("remote non-folder %s deleted locally and changed remotely; taking remote change", remoteNode.Guid)
			m.counts.RemoteRevives++
			return structureChangeUnchanged, nil
		}
		m.driver.Trace("remote folder %s deleted locally and changed remotely; taking local deletion", remoteNode.Guid)
		m.counts.LocalDeletes++
	} else {
		m.driver.Trace("remote node %s deleted locally and not changed remotely; taking local deletion", remoteNode.Guid)
	}

	return m.deleteRemoteNode(mergedNode, remoteNode)
}

// checkForRemoteStructureChangeOfLocalNode is the inverse of
// checkForLocalStructureChangeOfRemoteNode.
func (m *Merger) checkForRemoteStructureChangeOfLocalNode(mergedNode *core.MergedNode, localParent, localNode *core.Node) (structureChange, error) {
	if !localNode.IsSyncable() {
		m.driver.Trace("deleting non-syncable local node %s", localNode.Guid)
		return m.deleteLocalNode(mergedNode, localNode)
	}

	if !m.remoteTree.IsDeleted(localNode.Guid) {
		if remoteNode, ok := m.remoteTree.Node(localNode.Guid); ok {
			if !remoteNode.IsSyncable() {
				m.driver.Trace("local node %s is syncable, but remote node isn't; deleting", localNode.Guid)
				return m.deleteLocalNode(mergedNode, localNode)
			}
			if remoteNode.Validity == core.ValidityReplace && localNode.Validity == core.ValidityReplace {
				return m.deleteLocalNode(mergedNode, localNode)
			}
			remoteParent, _ := m.remoteTree.ParentNode(remoteNode)
			if remoteParent.Guid != localParent.Guid {
				return structureChangeMoved, nil
			}
			return structureChangeUnchanged, nil
		}
		if localNode.Validity == core.ValidityReplace {
			return m.deleteLocalNode(mergedNode, localNode)
		}
		return structureChangeUnchanged, nil
	}

	if localNode.Validity == core.ValidityReplace {
		return m.deleteLocalNode(mergedNode, localNode)
	}
	if localNode.IsBuiltInRoot() {
		return structureChangeUnchanged, nil
	}

	if localNode.NeedsMerge {
		if !localNode.IsFolder() {
			m.driver.Trace("local non-folder %s deleted remotely and changed locally; taking local change", localNode.Guid)
			m.counts.LocalRevives++
			return structureChangeUnchanged, nil
		}
		m.driver.Trace("local folder %s deleted remotely and changed locally; taking remote deletion", localNode.Guid)
		m.counts.RemoteDeletes++
	} else {
		m.driver.Trace("local node %s deleted remotely and not changed locally; taking remote deletion", localNode.Guid)
	}

	return m.deleteLocalNode(mergedNode, localNode)
}

// deleteRemoteNode marks remoteNode for remote deletion, and relocates any
// of its remote descendants that weren't also locally deleted to
// mergedNode, so a folder deleted on one device doesn't silently drop a
// bookmark added to it on another (§4.1.6). It's the inverse of
// deleteLocalNode.
func (m *Merger) deleteRemoteNode(mergedNode *core.MergedNode, remoteNode *core.Node) (structureChange, error) {
	m.deleteRemotely[remoteNode.Guid] = struct{}{}

	for _, remoteChild := range m.remoteTree.ChildNodes(remoteNode) {
		if err := m.signal.ErrIfAborted(); err != nil {
			return structureChangeUnchanged, err
		}
		if _, ok := m.mergedGuids[remoteChild.Guid]; ok {
			m.driver.Trace("remote child %s can't be an orphan; already merged", remoteChild.Guid)
			continue
		}
		change, err := m.checkForLocalStructureChangeOfRemoteNode(mergedNode, remoteNode, remoteChild)
		if err != nil {
			return structureChangeUnchanged, err
		}
		switch change {
		case structureChangeMoved, structureChangeDeleted:
			continue
		default:
			m.driver.Trace("relocating remote orphan %s to %s", remoteChild.Guid, mergedNode.Guid)
			var mergedOrphan *core.MergedNode
			if localChild, ok := m.localTree.Node(remoteChild.Guid); ok {
				mergedOrphan, err = m.twoWayMerge(localChild, remoteChild)
			} else {
				mergedOrphan, err = m.mergeRemoteOnlyNode(remoteChild)
			}
			if err != nil {
				return structureChangeUnchanged, err
			}
			mergedNode.State = mergedNode.State.WithNewLocalStructure().WithNewRemoteStructure()
			mergedOrphan.State = mergedOrphan.State.WithNewLocalStructure().WithNewRemoteStructure()
			mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedOrphan)
			m.counts.MergedNodes++
		}
	}

	return structureChangeDeleted, nil
}

// deleteLocalNode is the inverse of deleteRemoteNode.
func (m *Merger) deleteLocalNode(mergedNode *core.MergedNode, localNode *core.Node) (structureChange, error) {
	m.deleteLocally[localNode.Guid] = struct{}{}

	for _, localChild := range m.localTree.ChildNodes(localNode) {
		if err := m.signal.ErrIfAborted(); err != nil {
			return structureChangeUnchanged, err
		}
		if _, ok := m.mergedGuids[localChild.Guid]; ok {
			m.driver.Trace("local child %s can't be an orphan; already merged", localChild.Guid)
			continue
		}
		change, err := m.checkForRemoteStructureChangeOfLocalNode(mergedNode, localNode, localChild)
		if err != nil {
			return structureChangeUnchanged, err
		}
		switch change {
		case structureChangeMoved, structureChangeDeleted:
			continue
		default:
			m.driver.Trace("relocating local orphan %s to %s", localChild.Guid, mergedNode.Guid)
			var mergedOrphan *core.MergedNode
			if remoteChild, ok := m.remoteTree.Node(localChild.Guid); ok {
				mergedOrphan, err = m.twoWayMerge(localChild, remoteChild)
			} else {
				mergedOrphan, err = m.mergeLocalOnlyNode(localChild)
			}
			if err != nil {
				return structureChangeUnchanged, err
			}
			mergedNode.State = mergedNode.State.WithNewLocalStructure().WithNewRemoteStructure()
			mergedOrphan.State = mergedOrphan.State.WithNewLocalStructure().WithNewRemoteStructure()
			mergedNode.MergedChildren = append(mergedNode.MergedChildren, mergedOrphan)
			m.counts.MergedNodes++
		}
	}

	return structureChangeDeleted, nil
}

// findAllMatchingDupesInFolders matches every un-matched child of
// localParent against every un-matched child of remoteParent by content
// (§4.4). It's O(m+n), and its result is cached by findLocalNodeMatchingRemoteNode
// / findRemoteNodeMatchingLocalNode so a folder with many content-matched
// children only pays this cost once.
func (m *Merger) findAllMatchingDupesInFolders(localParent, remoteParent *core.Node) (*MatchingDupes, error) {
	dupeKeyToLocal := make(map[string][]*core.Node)

	for position, localChild := range m.localTree.ChildNodes(localParent) {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if localChild.IsBuiltInRoot() {
			continue
		}
		if m.remoteTree.Mentions(localChild.Guid) {
			continue
		}
		if localChild.Content == nil {
			continue
		}
		key := m.dedupe.keyFor(localChild.Content, position)
		dupeKeyToLocal[key] = append(dupeKeyToLocal[key], localChild)
	}

	localToRemote := make(map[core.Guid]*core.Node)
	remoteToLocal := make(map[core.Guid]*core.Node)

	for position, remoteChild := range m.remoteTree.ChildNodes(remoteParent) {
		if err := m.signal.ErrIfAborted(); err != nil {
			return nil, err
		}
		if remoteChild.IsBuiltInRoot() {
			continue
		}
		if m.localTree.Mentions(remoteChild.Guid) {
			continue
		}
		if _, already := remoteToLocal[remoteChild.Guid]; already {
			continue
		}
		if remoteChild.Content == nil {
			continue
		}
		key := m.dedupe.keyFor(remoteChild.Content, position)
		candidates, ok := dupeKeyToLocal[key]
		if !ok || len(candidates) == 0 {
			continue
		}
		localMatch := candidates[0]
		dupeKeyToLocal[key] = candidates[1:]
		localToRemote[localMatch.Guid] = remoteChild
		remoteToLocal[remoteChild.Guid] = localMatch
	}

	return &MatchingDupes{LocalToRemote: localToRemote, RemoteToLocal: remoteToLocal}, nil
}

// findRemoteNodeMatchingLocalNode finds a remote node with a different GUID
// that matches localChild's content. This is the inverse of
// findLocalNodeMatchingRemoteNode.
func (m *Merger) findRemoteNodeMatchingLocalNode(mergedNode *core.MergedNode, localParent, remoteParent, localChild *core.Node) (*core.Node, error) {
	if remoteParent == nil {
		return nil, nil
	}
	dupes, ok := m.matchingDupesByLocalParentGuid[localParent.Guid]
	if !ok {
		m.driver.Trace("first local child %s doesn't exist remotely; finding all matching dupes", localChild.Guid)
		var err error
		dupes, err = m.findAllMatchingDupesInFolders(localParent, remoteParent)
		if err != nil {
			return nil, err
		}
		m.matchingDupesByLocalParentGuid[localParent.Guid] = dupes
	}
	if match, ok := dupes.LocalToRemote[localChild.Guid]; ok {
		m.counts.Dupes++
		return match, nil
	}
	return nil, nil
}

// findLocalNodeMatchingRemoteNode finds a local node with a different GUID
// that matches remoteChild's content. This is the inverse of
// findRemoteNodeMatchingLocalNode.
func (m *Merger) findLocalNodeMatchingRemoteNode(mergedNode *core.MergedNode, localParent, remoteParent, remoteChild *core.Node) (*core.Node, error) {
	if localParent == nil {
		return nil, nil
	}
	dupes, ok := m.matchingDupesByLocalParentGuid[localParent.Guid]
	if !ok {
		m.driver.Trace("first remote child %s doesn't exist locally; finding all matching dupes", remoteChild.Guid)
		var err error
		dupes, err = m.findAllMatchingDupesInFolders(localParent, remoteParent)
		if err != nil {
			return nil, err
		}
		m.matchingDupesByLocalParentGuid[localParent.Guid] = dupes
	}
	if match, ok := dupes.RemoteToLocal[remoteChild.Guid]; ok {
		m.counts.Dupes++
		return match, nil
	}
	return nil, nil
}
