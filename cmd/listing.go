package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/brettbedarf/termfs"
	"github.com/brettbedarf/termfs/filesystem"
)

const timeLayout = "Jan _2 15:04"

// printListing writes an `ls -lR` style listing of every directory
func printListing(w io.Writer, fs *filesystem.FileSystem) error {
	var dirs []*filesystem.Node
	err := fs.Walk(func(node *filesystem.Node, _ int) error {
		if node.Kind() == termfs.Directory {
			dirs = append(dirs, node)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, dir := range dirs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n", dir.FullPath())

		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
		for _, child := range dir.Children() {
			fmt.Fprintln(tw, entryLine(child.Info()))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func entryLine(info termfs.NodeInfo) string {
	name := info.Name
	if info.Type == termfs.SymbolicLink {
		name += " -> " + info.LinkTarget
	}
	return fmt.Sprintf("%s\t%s\t%s\t%d\t%s\t%s", info.Mode(), info.Owner, info.Group, info.Size, info.ModifiedAt.Format(timeLayout), name)
}
