package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"flow-vce/internal/domain/services"
	"flow-vce/pkg/filetree"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// 默认跳过的目录
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".idea":        true,
	".vscode":      true,
}

type treeOptions struct {
	Sorted bool
	JSON   bool
	Sizes  bool
	All    bool
}

// newTreeCmd 打印目录或标准输入路径列表的文件树
func newTreeCmd(fs afero.Fs) *cobra.Command {
	opts := &treeOptions{}

	cmd := &cobra.Command{
		Use:   "tree [directory|-]",
		Short: "Print the file tree of a directory, or of paths read from stdin with '-'",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			var (
				records []filetree.FileRecord
				root    string
				err     error
			)
			if dir == "-" {
				records, err = readRecords(cmd.InOrStdin())
			} else {
				records, err = walkRecords(fs, dir, opts.All)
				root = filepath.Base(filepath.Clean(dir))
			}
			if err != nil {
				return err
			}

			roots, err := filetree.Build(records)
			if err != nil {
				for _, verr := range filetree.ValidationErrors(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), verr)
				}
				return fmt.Errorf("%d invalid paths", len(filetree.InvalidPaths(err)))
			}
			if opts.Sorted {
				roots = filetree.SortFoldersFirst(roots)
			}

			out := cmd.OutOrStdout()
			if opts.JSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(roots)
			}

			_, err = io.WriteString(out, filetree.Render(roots, filetree.RenderOptions{
				Root:         root,
				ShowSize:     opts.Sizes,
				FolderSuffix: "/",
			}))
			if err != nil {
				return err
			}
			folders, files := filetree.Count(roots)
			_, err = fmt.Fprintf(out, "\n%d directories, %d files\n", folders, files)
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.Sorted, "sorted", "s", false, "List folders first, then by name")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the tree as JSON")
	cmd.Flags().BoolVar(&opts.Sizes, "sizes", false, "Show file sizes")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Include .git, node_modules and editor folders")
	return cmd
}

// walkRecords 遍历目录，返回相对路径记录，顺序为遍历顺序
func walkRecords(fs afero.Fs, dir string, all bool) ([]filetree.FileRecord, error) {
	var records []filetree.FileRecord
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && !all && skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		records = append(records, filetree.FileRecord{
			Path:     rel,
			Size:     info.Size(),
			Language: services.DetectLanguage(rel, nil),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return records, nil
}

// readRecords 每行一个路径，可选以制表符分隔大小
func readRecords(r io.Reader) ([]filetree.FileRecord, error) {
	var records []filetree.FileRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec := filetree.FileRecord{Path: line}
		if path, size, ok := strings.Cut(line, "\t"); ok {
			rec.Path = strings.TrimSpace(path)
			n, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: invalid size %q", lineNo, strings.TrimSpace(size))
			}
			rec.Size = n
		}
		rec.Language = services.DetectLanguage(rec.Path, nil)
		records = append(records, rec)
	}
	return records, scanner.Err()
}
