package core

// MergeStateKind identifies which side (or neither, or both) won the value
// for a merged item (§3.2, GLOSSARY).
type MergeStateKind uint8

const (
	// StateUnchanged indicates neither side changed the item relative to
	// the other; either copy may be used.
	StateUnchanged MergeStateKind = iota
	// StateLocal indicates the local copy's value should be kept and
	// uploaded.
	StateLocal
	// StateRemote indicates the remote copy's value should be kept and
	// applied locally.
	StateRemote
	// StateLocalOnly indicates the item exists only locally.
	StateLocalOnly
	// StateRemoteOnly indicates the item exists only remotely.
	StateRemoteOnly
)

// String implements fmt.Stringer.
func (k MergeStateKind) String() string {
	switch k {
	case StateUnchanged:
		return "unchanged"
	case StateLocal:
		return "local"
	case StateRemote:
		return "remote"
	case StateLocalOnly:
		return "local-only"
	case StateRemoteOnly:
		return "remote-only"
	default:
		return "unknown"
	}
}

// MergeState names which side's value won for an item, which Nodes back that
// decision, and whether either side's structure needs to be rewritten as a
// result of the merge (§3.2). The NewLocal/NewRemoteStructure flags are
// monotone: once set, WithNewLocalStructure/WithNewRemoteStructure never
// clear them, since a later merge step may decide structure needs rewriting
// after an earlier step already built the MergeState without knowing that.
type MergeState struct {
	Kind               MergeStateKind
	Local              *Node
	Remote             *Node
	NewLocalStructure  bool
	NewRemoteStructure bool
}

// WithNewLocalStructure returns a copy of s with NewLocalStructure set.
func (s MergeState) WithNewLocalStructure() MergeState {
	s.NewLocalStructure = true
	return s
}

// WithNewRemoteStructure returns a copy of s with NewRemoteStructure set.
func (s MergeState) WithNewRemoteStructure() MergeState {
	s.NewRemoteStructure = true
	return s
}

// NewLocalOnlyMergeState builds the state for an item that exists only
// locally.
func NewLocalOnlyMergeState(local *Node) MergeState {
	return MergeState{Kind: StateLocalOnly, Local: local}
}

// NewRemoteOnlyMergeState builds the state for an item that exists only
// remotely.
func NewRemoteOnlyMergeState(remote *Node) MergeState {
	return MergeState{Kind: StateRemoteOnly, Remote: remote}
}

// NewUnchangedMergeState builds the state for an item present on both sides
// where neither side's value needs to change.
func NewUnchangedMergeState(local, remote *Node) MergeState {
	return MergeState{Kind: StateUnchanged, Local: local, Remote: remote}
}

// NewLocalMergeState builds the state for an item present on both sides where
// the local value wins.
func NewLocalMergeState(local, remote *Node) MergeState {
	return MergeState{Kind: StateLocal, Local: local, Remote: remote}
}

// NewRemoteMergeState builds the state for an item present on both sides
// where the remote value wins.
func NewRemoteMergeState(local, remote *Node) MergeState {
	return MergeState{Kind: StateRemote, Local: local, Remote: remote}
}

// MergedNode is one item in the output merged tree (§3.2): the winning GUID
// for the item, the MergeState that produced it, and the item's merged
// children in position order. A MergedNode tree is the single structure the
// merger builds; CompletionOps is derived from it afterward.
type MergedNode struct {
	Guid           Guid
	State          MergeState
	MergedChildren []*MergedNode
}

// NewMergedNode constructs a MergedNode with no children yet.
func NewMergedNode(guid Guid, state MergeState) *MergedNode {
	return &MergedNode{Guid: guid, State: state}
}

// LocalGuidChanged reports whether the merged item's GUID differs from the
// local copy's GUID (because the local item was deduped to a remote item
// with a different GUID, or because an invalid GUID was replaced).
func (m *MergedNode) LocalGuidChanged() bool {
	return m.State.Local != nil && m.State.Local.Guid != m.Guid
}

// RemoteGuidChanged reports whether the merged item's GUID differs from the
// remote copy's GUID.
func (m *MergedNode) RemoteGuidChanged() bool {
	return m.State.Remote != nil && m.State.Remote.Guid != m.Guid
}

// ShouldApplyItem reports whether the merged item's value fields should be
// applied to the local tree. This holds exactly when the remote copy won the
// value: for an item that exists only remotely (StateRemoteOnly) there is no
// local copy to apply to, so this still means "materialize it locally"; for
// an item present on both sides with StateRemote, it means "overwrite the
// local fields with the remote ones". It never holds for StateLocal,
// StateLocalOnly, or StateUnchanged, since none of those require changing
// what's stored locally.
func (m *MergedNode) ShouldApplyItem() bool {
	return m.State.Kind == StateRemote || m.State.Kind == StateRemoteOnly
}

// ShouldUpload reports whether the merged item's value fields should be
// uploaded to the remote tree. By the same reasoning as ShouldApplyItem, this
// holds exactly for StateLocal and StateLocalOnly.
func (m *MergedNode) ShouldUpload() bool {
	return m.State.Kind == StateLocal || m.State.Kind == StateLocalOnly
}

// StructureCounts tallies how many items of each disposition a merge
// produced (§3.2, §8). These are diagnostic, not used to drive further
// decisions; a driver may log or export them.
type StructureCounts struct {
	// RemoteRevives counts non-folder items deleted locally but changed
	// remotely, where the remote change was kept.
	RemoteRevives int
	// LocalDeletes counts folders deleted locally but changed remotely,
	// where the local deletion was kept.
	LocalDeletes int
	// LocalRevives counts non-folder items deleted remotely but changed
	// locally, where the local change was kept.
	LocalRevives int
	// RemoteDeletes counts folders deleted remotely but changed locally,
	// where the remote deletion was kept.
	RemoteDeletes int
	// Dupes counts items matched to each other by content rather than GUID.
	Dupes int
	// MergedNodes counts the total number of nodes in the merged tree,
	// excluding the root.
	MergedNodes int
}

// MergedRoot is the full output of a merge (§3.2): the merged tree, the
// source trees it was built from, the sets of GUIDs that need deleting on
// each side, and summary counts.
type MergedRoot struct {
	Root   *MergedNode
	Local  *Tree
	Remote *Tree

	// mergedGuids is the set of every GUID the merge accounted for by
	// merging it: the local and remote GUIDs of each merged item, plus any
	// minted replacement GUIDs.
	mergedGuids map[Guid]struct{}
	// deleteLocally is the set of GUIDs to delete from the local tree.
	deleteLocally map[Guid]struct{}
	// deleteRemotely is the set of GUIDs to delete from the remote tree.
	deleteRemotely map[Guid]struct{}

	Counts StructureCounts
}

// NewMergedRoot constructs an empty MergedRoot over the given source trees.
func NewMergedRoot(local, remote *Tree) *MergedRoot {
	return &MergedRoot{
		Local:          local,
		Remote:         remote,
		mergedGuids:    make(map[Guid]struct{}),
		deleteLocally:  make(map[Guid]struct{}),
		deleteRemotely: make(map[Guid]struct{}),
	}
}

// MarkMerged records that guid appears in the merged tree.
func (m *MergedRoot) MarkMerged(guid Guid) {
	m.mergedGuids[guid] = struct{}{}
}

// IsMerged reports whether guid has been placed in the merged tree. The
// Merger tracks merged GUIDs in its own set during the walk and copies them
// here once the merge succeeds.
func (m *MergedRoot) IsMerged(guid Guid) bool {
	_, ok := m.mergedGuids[guid]
	return ok
}

// DeleteLocally marks guid for deletion from the local tree.
func (m *MergedRoot) DeleteLocally(guid Guid) {
	m.deleteLocally[guid] = struct{}{}
}

// DeleteRemotely marks guid for deletion from the remote tree.
func (m *MergedRoot) DeleteRemotely(guid Guid) {
	m.deleteRemotely[guid] = struct{}{}
}

// LocalDeletions returns every GUID marked for local deletion, in
// unspecified order.
func (m *MergedRoot) LocalDeletions() []Guid {
	return guidSetToSlice(m.deleteLocally)
}

// RemoteDeletions returns every GUID marked for remote deletion, in
// unspecified order.
func (m *MergedRoot) RemoteDeletions() []Guid {
	return guidSetToSlice(m.deleteRemotely)
}

// Deletions returns every GUID marked for deletion on either side, in
// unspecified order, with duplicates removed.
func (m *MergedRoot) Deletions() []Guid {
	combined := make(map[Guid]struct{}, len(m.deleteLocally)+len(m.deleteRemotely))
	for g := range m.deleteLocally {
		combined[g] = struct{}{}
	}
	for g := range m.deleteRemotely {
		combined[g] = struct{}{}
	}
	return guidSetToSlice(combined)
}

func guidSetToSlice(set map[Guid]struct{}) []Guid {
	out := make([]Guid, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	return out
}
