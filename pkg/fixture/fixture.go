// Package fixture loads local and remote bookmark trees from YAML files, for
// use by the command-line tool and by package tests. It's a minimal stand-in
// for a real bookmark store's tree builder: production callers (a Places
// database reader, a Sync record decoder) would construct core.Tree values
// directly instead of parsing YAML.
package fixture

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v3"

	"github.com/dogear-go/dogear/pkg/merge/core"
)

// Node is the YAML shape of a single bookmark item. Title and URL are only
// meaningful for bookmarks and folders; Children is only meaningful for
// folders.
type Node struct {
	Guid       string  `yaml:"guid"`
	Kind       string  `yaml:"kind"`
	Title      string  `yaml:"title,omitempty"`
	URL        string  `yaml:"url,omitempty"`
	Age        int64   `yaml:"age,omitempty"`
	NeedsMerge bool    `yaml:"needsMerge,omitempty"`
	Diverged   bool    `yaml:"diverged,omitempty"`
	Validity   string  `yaml:"validity,omitempty"`
	Unsyncable bool    `yaml:"unsyncable,omitempty"`
	BuiltIn    bool    `yaml:"builtIn,omitempty"`
	Children   []*Node `yaml:"children,omitempty"`
}

// Tree is the YAML shape of a whole tree: a root folder plus the GUIDs this
// side has tombstones for.
type Tree struct {
	Root      *Node    `yaml:"root"`
	Tombstones []string `yaml:"tombstones,omitempty"`
}

// Load parses a YAML document into a fixture Tree.
func Load(data []byte) (*Tree, error) {
	var t Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("fixture: parse tree: %w", err)
	}
	if t.Root == nil {
		return nil, fmt.Errorf("fixture: tree has no root")
	}
	return &t, nil
}

// LoadFile reads and parses a YAML tree fixture from path.
func LoadFile(path string) (*Tree, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	return Load(data)
}

// Build converts a fixture Tree into a core.Tree, suitable for merging.
func (t *Tree) Build() (*core.Tree, error) {
	tree := core.NewTree(core.Guid(t.Root.Guid))
	if err := populate(tree, t.Root, ""); err != nil {
		return nil, err
	}
	for _, guid := range t.Tombstones {
		tree.MarkDeleted(core.Guid(guid))
	}
	return tree, nil
}

func populate(tree *core.Tree, n *Node, parent string) error {
	guid := core.Guid(n.Guid)
	if guid == "" {
		return fmt.Errorf("fixture: node has no guid")
	}

	var node *core.Node
	if parent == "" {
		// The root is already present in a freshly built core.Tree.
		node, _ = tree.Node(guid)
		if node == nil {
			return fmt.Errorf("fixture: root guid %q doesn't match tree root", n.Guid)
		}
	} else {
		kind, err := parseKind(n.Kind)
		if err != nil {
			return fmt.Errorf("fixture: node %s: %w", n.Guid, err)
		}
		node = core.NewNode(guid, kind)
		tree.Insert(node, core.Guid(parent))
	}

	node.Age = n.Age
	node.NeedsMerge = n.NeedsMerge
	node.Diverged = n.Diverged
	if n.BuiltIn {
		node.MarkBuiltInRoot()
	} else if !n.Unsyncable {
		node.MarkSyncable()
	}

	if n.Validity != "" {
		validity, err := parseValidity(n.Validity)
		if err != nil {
			return fmt.Errorf("fixture: node %s: %w", n.Guid, err)
		}
		node.Validity = validity
	}

	if node.Kind != core.KindFolder {
		node.Content = contentFor(node.Kind, n.Title, n.URL)
	} else {
		node.Content = core.NewFolderContent(n.Title)
	}

	for _, child := range n.Children {
		if err := populate(tree, child, string(guid)); err != nil {
			return err
		}
	}

	return nil
}

func contentFor(kind core.Kind, title, url string) *core.Content {
	switch kind {
	case core.KindBookmark:
		return core.NewBookmarkContent(title, url)
	case core.KindSeparator:
		return core.NewSeparatorContent()
	default:
		return nil
	}
}

func parseKind(s string) (core.Kind, error) {
	switch s {
	case "bookmark":
		return core.KindBookmark, nil
	case "folder", "":
		return core.KindFolder, nil
	case "query":
		return core.KindQuery, nil
	case "separator":
		return core.KindSeparator, nil
	case "livemark":
		return core.KindLivemark, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

func parseValidity(s string) (core.Validity, error) {
	switch s {
	case "valid", "":
		return core.ValidityValid, nil
	case "reupload":
		return core.ValidityReupload, nil
	case "replace":
		return core.ValidityReplace, nil
	default:
		return 0, fmt.Errorf("unknown validity %q", s)
	}
}
