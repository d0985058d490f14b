package filetree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrNotFound is returned when a rename, move or delete names a path that
// matches neither a file nor a folder.
var ErrNotFound = errors.New("path not found")

// Reason classifies a ValidationError.
type Reason string

const (
	ReasonEmptySegment        Reason = "empty path segment"
	ReasonRelativeSegment     Reason = "relative path segment"
	ReasonFileFolderCollision Reason = "path is both a file and a folder"
	ReasonInvalidName         Reason = "invalid node name"
	ReasonDuplicatePath       Reason = "path already exists"
)

// ValidationError names a path the builder refuses to place in a tree.
type ValidationError struct {
	Path   string
	Reason Reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// ValidationErrors returns every *ValidationError carried by err, in the
// order they were found.
func ValidationErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]*ValidationError, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			var verr *ValidationError
			if errors.As(e, &verr) {
				out = append(out, verr)
			}
		}
		return out
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return []*ValidationError{verr}
	}
	return nil
}

// InvalidPaths is a convenience over ValidationErrors returning only paths.
func InvalidPaths(err error) []string {
	verrs := ValidationErrors(err)
	paths := make([]string, 0, len(verrs))
	for _, v := range verrs {
		paths = append(paths, v.Path)
	}
	return paths
}

// ValidatePath checks a single path for empty and relative segments.
func ValidatePath(path string) error {
	if path == "" {
		return &ValidationError{Path: path, Reason: ReasonEmptySegment}
	}
	for _, seg := range strings.Split(path, Separator) {
		switch seg {
		case "":
			return &ValidationError{Path: path, Reason: ReasonEmptySegment}
		case ".", "..":
			return &ValidationError{Path: path, Reason: ReasonRelativeSegment}
		}
	}
	return nil
}

// ValidateName checks a single node name used by Rename.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, Separator) || name == "." || name == ".." {
		return &ValidationError{Path: name, Reason: ReasonInvalidName}
	}
	return nil
}

// Validate checks a whole record list: every path must be well formed and
// no path may be used both as a file and as a folder prefix.
func Validate(records []FileRecord) error {
	var result *multierror.Error

	files := make(map[string]struct{}, len(records))
	folders := make(map[string]struct{})
	for _, rec := range records {
		if err := ValidatePath(rec.Path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		files[rec.Path] = struct{}{}
		for i := 0; i < len(rec.Path); i++ {
			if rec.Path[i] == '/' {
				folders[rec.Path[:i]] = struct{}{}
			}
		}
	}

	reported := make(map[string]struct{})
	for _, rec := range records {
		if _, ok := files[rec.Path]; !ok {
			continue
		}
		if _, ok := folders[rec.Path]; !ok {
			continue
		}
		if _, ok := reported[rec.Path]; ok {
			continue
		}
		reported[rec.Path] = struct{}{}
		result = multierror.Append(result, &ValidationError{Path: rec.Path, Reason: ReasonFileFolderCollision})
	}

	return result.ErrorOrNil()
}
