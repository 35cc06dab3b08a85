package core

// Node is one item in a local or remote bookmark tree (§3.1). Rather than
// linking nodes with parent/child pointers, a Node records its children and
// parent by GUID; the owning Tree resolves those GUIDs to Nodes. This avoids
// the cycle a pointer-based parent/child pair would create and lets a Node be
// copied and compared by value where convenient.
type Node struct {
	// Guid uniquely identifies this item within its tree.
	Guid Guid
	// Kind is the item's bookmark kind.
	Kind Kind
	// Validity says whether this copy of the item can be trusted as-is.
	Validity Validity
	// Age is how long ago the item changed. Smaller values are treated as
	// more recently changed; the merger compares a local node's Age directly
	// against a remote node's Age when resolving value and structure
	// conflicts.
	Age int64
	// NeedsMerge indicates the item has local changes, remote changes, or
	// both that haven't yet been reconciled.
	NeedsMerge bool
	// Diverged indicates the item's structure disagrees with what the
	// other side most recently observed, even though NeedsMerge may be
	// false (§4.1.5).
	Diverged bool
	// Content is the dedupe fingerprint for this item, or nil if the item
	// isn't a dedupe candidate.
	Content *Content
	// Children holds the GUIDs of this node's children, in position order.
	// It's only meaningful when Kind.IsFolder() is true.
	Children []Guid
	// Parent is the GUID of this node's parent, or "" for the tree root.
	Parent Guid
	// isRoot marks the synthetic root of the tree.
	isRoot bool
	// builtInRoot marks one of the small set of roots Sync always keeps
	// (menu, toolbar, unfiled, mobile and tags). The synthetic tree root is
	// marked by isRoot instead; NewRootNode doesn't set builtInRoot.
	builtInRoot bool
	// syncable marks items that participate in sync at all; unsyncable
	// items (left-pane queries, orphaned left-pane items, and similar) are
	// walked only far enough to confirm they carry no syncable descendants.
	syncable bool
}

// IsRoot reports whether this node is the synthetic tree root.
func (n *Node) IsRoot() bool {
	return n.isRoot
}

// IsBuiltInRoot reports whether this node is one of Sync's built-in roots.
func (n *Node) IsBuiltInRoot() bool {
	return n.builtInRoot
}

// IsSyncable reports whether this node participates in sync.
func (n *Node) IsSyncable() bool {
	return n.syncable
}

// IsFolder reports whether this node can have children.
func (n *Node) IsFolder() bool {
	return n.Kind.IsFolder()
}

// HasCompatibleKind reports whether n and other can be merged as the same
// logical item despite otherwise-differing fields (§4.1.1).
func (n *Node) HasCompatibleKind(other *Node) bool {
	return n.Kind.HasCompatibleKind(other.Kind)
}

// HasMatchingChildren reports whether n and other have the same children, in
// the same order, by GUID. This is used to short-circuit structure-conflict
// detection when neither side actually reordered or reparented anything
// (§4.3).
func (n *Node) HasMatchingChildren(other *Node) bool {
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i, g := range n.Children {
		if other.Children[i] != g {
			return false
		}
	}
	return true
}

// NewRootNode constructs the synthetic root of a tree. The root is always a
// folder, is always syncable, and is never a dedupe candidate.
func NewRootNode(guid Guid) *Node {
	return &Node{
		Guid:     guid,
		Kind:     KindFolder,
		Validity: ValidityValid,
		isRoot:   true,
		syncable: true,
	}
}

// NewNode constructs a non-root node with the given identity and kind. Callers
// set NeedsMerge, Age, Content, and the built-in-root/syncable flags (via
// MarkBuiltInRoot / MarkSyncable) afterward, mirroring how a tree builder
// would populate fields incrementally while walking source rows.
func NewNode(guid Guid, kind Kind) *Node {
	return &Node{
		Guid:     guid,
		Kind:     kind,
		Validity: ValidityValid,
	}
}

// MarkBuiltInRoot marks n as one of Sync's built-in roots. Built-in roots are
// always syncable.
func (n *Node) MarkBuiltInRoot() *Node {
	n.builtInRoot = true
	n.syncable = true
	return n
}

// MarkSyncable marks n as syncable.
func (n *Node) MarkSyncable() *Node {
	n.syncable = true
	return n
}
