package filetree

import (
	"errors"
	"sort"
	"strings"
)

// ErrStop can be returned from a WalkFunc to end the walk early without an error.
var ErrStop = errors.New("stop walk")

// WalkFunc is called for every node in depth-first, insertion order.
type WalkFunc func(node *Node, depth int) error

// Walk visits every node below roots.
func Walk(roots []*Node, fn WalkFunc) error {
	err := walk(roots, 0, fn)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func walk(nodes []*Node, depth int, fn WalkFunc) error {
	for _, n := range nodes {
		if err := fn(n, depth); err != nil {
			return err
		}
		if n.IsDir() {
			if err := walk(n.Children, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find follows path through folder nodes and returns the node, or nil.
func Find(roots []*Node, path string) *Node {
	level := roots
	var found *Node
	for _, seg := range strings.Split(path, Separator) {
		found = nil
		for _, n := range level {
			if n.Name == seg {
				found = n
				break
			}
		}
		if found == nil {
			return nil
		}
		level = found.Children
	}
	return found
}

// Count returns the number of folder and file nodes in the forest.
func Count(roots []*Node) (folders, files int) {
	_ = Walk(roots, func(n *Node, _ int) error {
		if n.IsDir() {
			folders++
		} else {
			files++
		}
		return nil
	})
	return folders, files
}

// SortFoldersFirst returns a deep copy of roots ordered folders first, then
// by name. The input is left in insertion order.
func SortFoldersFirst(roots []*Node) []*Node {
	out := make([]*Node, len(roots))
	for i, n := range roots {
		cp := *n
		if n.IsDir() {
			cp.Children = SortFoldersFirst(n.Children)
		}
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDir() != out[j].IsDir() {
			return out[i].IsDir()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Move relocates the file at oldPath, or every file under the folder
// oldPath, to newPath. Only the exact leading segment chain is replaced.
// The input slice is not modified; the result is validated before it is
// returned.
func Move(records []FileRecord, oldPath, newPath string) ([]FileRecord, error) {
	if err := ValidatePath(oldPath); err != nil {
		return nil, err
	}
	if err := ValidatePath(newPath); err != nil {
		return nil, err
	}

	out := make([]FileRecord, len(records))
	copy(out, records)

	folderPrefix := oldPath + Separator
	matched := false
	for i := range out {
		switch {
		case out[i].Path == oldPath:
			out[i].Path = newPath
			matched = true
		case strings.HasPrefix(out[i].Path, folderPrefix):
			out[i].Path = newPath + Separator + strings.TrimPrefix(out[i].Path, folderPrefix)
			matched = true
		}
	}
	if !matched {
		return nil, ErrNotFound
	}
	if oldPath == newPath {
		return out, nil
	}

	if err := Validate(out); err != nil {
		return nil, err
	}
	if err := checkUnique(records, out, oldPath); err != nil {
		return nil, err
	}
	return out, nil
}

// Rename gives the node at path a new final segment. For a file only its
// last segment changes; for a folder every descendant path has that one
// segment of its prefix replaced.
func Rename(records []FileRecord, path, newName string) ([]FileRecord, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}
	dir, _ := split(path)
	newPath := newName
	if dir != "" {
		newPath = dir + Separator + newName
	}
	return Move(records, path, newPath)
}

// Delete removes the file at path, or every file under the folder path, and
// returns the remaining records together with the number removed.
func Delete(records []FileRecord, path string) ([]FileRecord, int, error) {
	if err := ValidatePath(path); err != nil {
		return nil, 0, err
	}
	folderPrefix := path + Separator
	out := make([]FileRecord, 0, len(records))
	removed := 0
	for _, rec := range records {
		if rec.Path == path || strings.HasPrefix(rec.Path, folderPrefix) {
			removed++
			continue
		}
		out = append(out, rec)
	}
	if removed == 0 {
		return nil, 0, ErrNotFound
	}
	return out, removed, nil
}

// checkUnique rejects a move whose target collides with a file that was
// not itself moved.
func checkUnique(before, after []FileRecord, oldPath string) error {
	folderPrefix := oldPath + Separator
	untouched := make(map[string]struct{}, len(before))
	for _, rec := range before {
		if rec.Path == oldPath || strings.HasPrefix(rec.Path, folderPrefix) {
			continue
		}
		untouched[rec.Path] = struct{}{}
	}
	for i, rec := range after {
		moved := before[i].Path == oldPath || strings.HasPrefix(before[i].Path, folderPrefix)
		if !moved {
			continue
		}
		if _, ok := untouched[rec.Path]; ok {
			return &ValidationError{Path: rec.Path, Reason: ReasonDuplicatePath}
		}
	}
	return nil
}
