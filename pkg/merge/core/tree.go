package core

// Tree is a local or remote bookmark tree (§3.1): a root Node plus every
// other Node reachable from it, indexed by GUID, plus the set of GUIDs the
// side has tombstones for (items it knows were deleted, even though it no
// longer has the item itself).
//
// Tree intentionally exposes no mutation methods beyond the builder-style
// Insert/MarkDeleted below; the merger never mutates a Tree once merging begins,
// it only reads from one Tree and writes into a MergedRoot.
type Tree struct {
	// Root is the synthetic root of the tree.
	Root *Node
	// nodes indexes every node in the tree, including Root, by GUID.
	nodes map[Guid]*Node
	// deletions is the set of GUIDs this side has tombstones for.
	deletions map[Guid]struct{}
}

// NewTree constructs an empty tree with the given root GUID.
func NewTree(rootGuid Guid) *Tree {
	root := NewRootNode(rootGuid)
	return &Tree{
		Root:      root,
		nodes:     map[Guid]*Node{rootGuid: root},
		deletions: make(map[Guid]struct{}),
	}
}

// Insert adds node to the tree and, if parent is non-empty, appends it to
// parent's Children. It's the caller's responsibility to insert nodes in an
// order such that each node's parent already exists (callers building a tree
// from a flat row list should insert folders before their children, or patch
// up Children after all nodes are present).
func (t *Tree) Insert(node *Node, parent Guid) {
	t.nodes[node.Guid] = node
	node.Parent = parent
	if parent != "" {
		if p, ok := t.nodes[parent]; ok {
			p.Children = append(p.Children, node.Guid)
		}
	}
}

// MarkDeleted records that this side has a tombstone for guid.
func (t *Tree) MarkDeleted(guid Guid) {
	t.deletions[guid] = struct{}{}
}

// Node looks up a node by GUID.
func (t *Tree) Node(guid Guid) (*Node, bool) {
	n, ok := t.nodes[guid]
	return n, ok
}

// MustNode looks up a node by GUID, returning nil if absent. It's a
// convenience for call sites that have already established the GUID must be
// present (e.g. a GUID taken from another node's Children); Node should be
// preferred wherever absence is a real possibility.
func (t *Tree) MustNode(guid Guid) *Node {
	return t.nodes[guid]
}

// IsDeleted reports whether this side has a tombstone for guid.
func (t *Tree) IsDeleted(guid Guid) bool {
	_, ok := t.deletions[guid]
	return ok
}

// Mentions reports whether guid refers to either a known node or a known
// tombstone on this side. A GUID that mentions nothing on a side is entirely
// foreign to it (§4.1 precondition for LocalOnly/RemoteOnly merge states).
func (t *Tree) Mentions(guid Guid) bool {
	if t.IsDeleted(guid) {
		return true
	}
	_, ok := t.nodes[guid]
	return ok
}

// Guids returns every GUID known to the tree, including the root, in
// unspecified order.
func (t *Tree) Guids() []Guid {
	guids := make([]Guid, 0, len(t.nodes))
	for g := range t.nodes {
		guids = append(guids, g)
	}
	return guids
}

// Len returns the number of nodes in the tree, including the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// DeletedGuids returns every GUID this side has a tombstone for, in
// unspecified order.
func (t *Tree) DeletedGuids() []Guid {
	guids := make([]Guid, 0, len(t.deletions))
	for g := range t.deletions {
		guids = append(guids, g)
	}
	return guids
}

// ChildNodes resolves n's Children GUIDs to Nodes, in position order. A
// child GUID with no corresponding node (which shouldn't happen in a
// well-formed tree) is silently skipped.
func (t *Tree) ChildNodes(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, guid := range n.Children {
		if child, ok := t.nodes[guid]; ok {
			children = append(children, child)
		}
	}
	return children
}

// ParentNode resolves n's Parent GUID to a Node. It returns false for the
// tree root, whose Parent is empty.
func (t *Tree) ParentNode(n *Node) (*Node, bool) {
	if n.Parent == "" {
		return nil, false
	}
	return t.Node(n.Parent)
}
