// Package filetree turns a flat list of slash-separated file paths into the
// folder/file hierarchy shown by the project file browser.
package filetree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Separator is the only path separator understood by the builder.
const Separator = "/"

// NodeKind tells folders and files apart.
type NodeKind int

const (
	KindFolder NodeKind = iota
	KindFile
)

// String returns the wire name of the kind.
func (k NodeKind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// MarshalJSON encodes the kind as "folder" or "file".
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes "folder" or "file".
func (k *NodeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "folder":
		*k = KindFolder
	case "file":
		*k = KindFile
	default:
		return fmt.Errorf("unknown node type %q", s)
	}
	return nil
}

// FileRecord is one entry of the flat file collection.
type FileRecord struct {
	ID       string `json:"id,omitempty"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Language string `json:"language,omitempty"`
}

// Node is a folder or a file of the tree. Children is only used by folders;
// ID, Size and Language only by files.
type Node struct {
	Name     string   `json:"name"`
	Kind     NodeKind `json:"type"`
	Path     string   `json:"path"`
	Children []*Node  `json:"children,omitempty"`
	ID       string   `json:"id,omitempty"`
	Size     int64    `json:"size,omitempty"`
	Language string   `json:"language,omitempty"`
}

// IsDir reports whether the node is a folder.
func (n *Node) IsDir() bool {
	return n.Kind == KindFolder
}

// MarshalJSON writes folders with a "children" array, empty rather than
// absent, and files with an explicit "size" so zero-byte files keep it.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.Kind == KindFolder {
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		return json.Marshal(struct {
			Name     string   `json:"name"`
			Kind     NodeKind `json:"type"`
			Path     string   `json:"path"`
			Children []*Node  `json:"children"`
		}{n.Name, n.Kind, n.Path, children})
	}
	return json.Marshal(struct {
		Name     string   `json:"name"`
		Kind     NodeKind `json:"type"`
		Path     string   `json:"path"`
		ID       string   `json:"id,omitempty"`
		Size     int64    `json:"size"`
		Language string   `json:"language,omitempty"`
	}{n.Name, n.Kind, n.Path, n.ID, n.Size, n.Language})
}

func newFolder(name, path string) *Node {
	return &Node{
		Name:     name,
		Kind:     KindFolder,
		Path:     path,
		Children: []*Node{},
	}
}

func newFile(name string, rec FileRecord) *Node {
	return &Node{
		Name:     name,
		Kind:     KindFile,
		Path:     rec.Path,
		ID:       rec.ID,
		Size:     rec.Size,
		Language: rec.Language,
	}
}

// Build converts records into an ordered forest of root nodes.
//
// The input is validated as a whole first; if any path is malformed or is
// both a file and a folder, no tree is returned and the error lists every
// offending path (see ValidationErrors). Every node, folder or file, is
// placed in the order its path is first encountered. When the same path is
// given twice the leaf keeps its first position and takes the attributes
// of the last record.
func Build(records []FileRecord) ([]*Node, error) {
	if err := Validate(records); err != nil {
		return nil, err
	}

	roots := make([]*Node, 0)
	folders := make(map[string]*Node)
	files := make(map[string]*Node, len(records))

	attach := func(parent string, n *Node) {
		if parent == "" {
			roots = append(roots, n)
			return
		}
		folders[parent].Children = append(folders[parent].Children, n)
	}

	for _, rec := range records {
		if leaf, ok := files[rec.Path]; ok {
			leaf.ID, leaf.Size, leaf.Language = rec.ID, rec.Size, rec.Language
			continue
		}

		parts := strings.Split(rec.Path, Separator)
		prefix := ""
		for _, part := range parts[:len(parts)-1] {
			parent := prefix
			if prefix == "" {
				prefix = part
			} else {
				prefix = prefix + Separator + part
			}
			if _, ok := folders[prefix]; ok {
				continue
			}
			folder := newFolder(part, prefix)
			folders[prefix] = folder
			attach(parent, folder)
		}

		leaf := newFile(parts[len(parts)-1], rec)
		files[rec.Path] = leaf
		attach(prefix, leaf)
	}

	return roots, nil
}

// split returns the parent prefix and the final segment of path.
func split(path string) (dir, name string) {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Join joins segments with the separator.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}
