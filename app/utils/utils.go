package utils

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/xlab/treeprint"
)

// BuildTree renders root as a tree. skip receives slash-separated paths
// relative to root; skipped directories are not descended into.
func BuildTree(root string, skip func(rel string, isDir bool) bool) (string, error) {
	tree := treeprint.New()
	tree.SetValue(filepath.Base(root))
	if err := addBranch(root, root, tree, skip); err != nil {
		return "", err
	}
	return tree.String(), nil
}

func addBranch(root, dir string, tree treeprint.Tree, skip func(string, bool) bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return err
		}
		if skip != nil && skip(filepath.ToSlash(rel), entry.IsDir()) {
			continue
		}
		if entry.IsDir() {
			branch := tree.AddBranch(entry.Name())
			if err = addBranch(root, full, branch, skip); err != nil {
				return err
			}
		} else {
			tree.AddNode(entry.Name())
		}
	}
	return nil
}
