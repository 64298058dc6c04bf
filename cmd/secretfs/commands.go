package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/absfs/secretfs"
	"github.com/absfs/secretfs/internal/logger"
	"github.com/disiqueira/gotree/v3"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new repository in the store directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.hostFS()
			if err != nil {
				return err
			}
			_, found, err := secretfs.LoadInitialisationData(fs, "/")
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("%s already holds a repository", a.cfg.Store.Path)
			}
			if _, err := a.open(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, color.GreenString("✓")+" initialised "+a.cfg.Store.Path)
			return nil
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	var (
		opts secretfs.ListOptions
		tree bool
	)

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			repo, loc, err := a.openWithLocation(arg)
			if err != nil {
				return err
			}

			locations, err := repo.ListAll(loc, opts)
			if err != nil {
				return err
			}
			secretfs.SortLocations(locations)
			logger.FromContext(cmd.Context()).Debug().Int("count", len(locations)).Msg("listed entries")

			if tree {
				fmt.Fprint(a.stdout, renderTree(loc, locations))
				return nil
			}
			for _, l := range locations {
				fmt.Fprintln(a.stdout, l.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Recursively, "recursive", "r", false, "descend into folders")
	cmd.Flags().BoolVarP(&opts.IncludeFolders, "dirs", "d", false, "include folders")
	cmd.Flags().BoolVarP(&opts.IncludeDottedFilesAndFolders, "all", "a", false, "include entries starting with '.' or '_'")
	cmd.Flags().BoolVarP(&tree, "tree", "t", false, "render as a tree")
	return cmd
}

// renderTree draws locations below base. locations must be sorted.
func renderTree(base secretfs.Location, locations []secretfs.Location) string {
	root := gotree.New(base.String())
	nodes := map[string]gotree.Tree{base.String(): root}

	var nodeFor func(l secretfs.Location) gotree.Tree
	nodeFor = func(l secretfs.Location) gotree.Tree {
		if n, ok := nodes[l.String()]; ok {
			return n
		}
		parent, last, ok := l.Up()
		if !ok || l.Len() <= base.Len() {
			return root
		}
		n := nodeFor(parent).Add(last.String())
		nodes[l.String()] = n
		return n
	}

	for _, l := range locations {
		nodeFor(l)
	}
	return root.Print()
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Print an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, loc, err := a.openWithLocation(args[0])
			if err != nil {
				return err
			}
			text, err := repo.ReadContext(cmd.Context(), loc)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, text)
			return nil
		},
	}
}

func (a *app) insertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <path>",
		Short: "Store standard input as an entry, replacing any existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, loc, err := a.openWithLocation(args[0])
			if err != nil {
				return err
			}
			raw, err := io.ReadAll(a.stdin)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			logger.FromContext(cmd.Context()).Debug().Int("bytes", len(raw)).Msg("read entry from stdin")
			if err := repo.WriteContext(cmd.Context(), loc, trimNewline(string(raw))); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, color.GreenString("✓")+" saved "+loc.String())
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, loc, err := a.openWithLocation(args[0])
			if err != nil {
				return err
			}
			if err := repo.Delete(loc); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, color.GreenString("✓")+" deleted "+loc.String())
			return nil
		},
	}
}

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, loc, err := a.openWithLocation(args[0])
			if err != nil {
				return err
			}
			return repo.CreateFolder(loc)
		},
	}
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Rename an entry (not supported yet)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, from, err := a.openWithLocation(args[0])
			if err != nil {
				return err
			}
			to, err := repo.ParseLocation(args[1])
			if err != nil {
				return err
			}
			return repo.Move(from, to)
		},
	}
}

func (a *app) pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <path>",
		Short: "Print the encrypted host path of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, loc, err := a.openWithLocation(args[0])
			if err != nil {
				return err
			}
			physical, err := repo.FilesystemPath(loc)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, filepath.Join(a.cfg.Store.Path, physical))
			return nil
		},
	}
}
