package filetree

import (
	"bytes"

	"github.com/dustin/go-humanize"
)

// RenderOptions controls the ASCII listing.
type RenderOptions struct {
	// Root, when set, is printed as the first line.
	Root string
	// ShowSize appends the human readable size to file lines.
	ShowSize bool
	// FolderSuffix marks folders, usually "/".
	FolderSuffix string
}

// Render prints the forest using the usual ├── / └── connectors, in the
// order of the nodes given.
func Render(roots []*Node, opts RenderOptions) string {
	var buffer bytes.Buffer
	if opts.Root != "" {
		buffer.WriteString(opts.Root + "\n")
	}
	for i, n := range roots {
		printNode(&buffer, n, "", i == len(roots)-1, opts)
	}
	return buffer.String()
}

func printNode(buffer *bytes.Buffer, n *Node, prefix string, isLast bool, opts RenderOptions) {
	buffer.WriteString(prefix)
	if isLast {
		buffer.WriteString("└── ")
		prefix += "    "
	} else {
		buffer.WriteString("├── ")
		prefix += "│   "
	}
	buffer.WriteString(n.Name)
	if n.IsDir() {
		buffer.WriteString(opts.FolderSuffix)
	} else if opts.ShowSize && n.Size >= 0 {
		buffer.WriteString(" (" + humanize.Bytes(uint64(n.Size)) + ")")
	}
	buffer.WriteString("\n")

	for i, child := range n.Children {
		printNode(buffer, child, prefix, i == len(n.Children)-1, opts)
	}
}
