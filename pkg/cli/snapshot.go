package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/getlumos/lumos-sub002/pkg/config"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/snapshot"
)

// defaultSnapshotPath is where the store lives when no project manifest
// overrides it.
const defaultSnapshotPath = ".lumos/snapshots.db"

// defaultSnapshotKeep is the per-schema retention when neither flag nor
// manifest sets one.
const defaultSnapshotKeep = 20

func newSnapshotCommand() *Command {
	cmd := &Command{
		Name:        "snapshot",
		Description: "Manage the local snapshot store",
		Subcommands: make(map[string]*Command),
		Run:         runSnapshot,
	}
	cmd.Subcommands["push"] = newSnapshotPushCommand()
	cmd.Subcommands["list"] = newSnapshotListCommand()
	cmd.Subcommands["prune"] = newSnapshotPruneCommand()
	return cmd
}

func runSnapshot(args []string) error {
	// Handle subcommands
	if len(args) == 0 {
		return runSnapshotHelp()
	}

	cmd := newSnapshotCommand()
	if subcmd, ok := cmd.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown snapshot subcommand: %s", args[0])
}

func runSnapshotHelp() error {
	fmt.Println("Usage: lumos snapshot <command> [args]")
	fmt.Println("\nAvailable commands:")
	fmt.Println("  push    Resolve a schema and store it under its declared version")
	fmt.Println("  list    List stored snapshots")
	fmt.Println("  prune   Drop old snapshots beyond the retention count")
	fmt.Println("\nExamples:")
	fmt.Println("  lumos snapshot push --schema game.lum")
	fmt.Println("  lumos snapshot list --name game")
	fmt.Println("  lumos snapshot prune --keep 10")
	return nil
}

// snapshotPushOptions holds the parsed flags of one push invocation.
type snapshotPushOptions struct {
	Schema string
	Name   string
	DB     string
}

func newSnapshotPushCommand() *Command {
	fs := flag.NewFlagSet("snapshot push", flag.ExitOnError)

	var (
		schemaPath = fs.String("schema", "", "Entry schema path (defaults to the project manifest's schema)")
		name       = fs.String("name", "", "Logical schema name (defaults to the entry file's base name)")
		dbPath     = fs.String("db", "", "Snapshot database path (defaults to the project's store)")
	)

	return &Command{
		Name:        "push",
		Description: "Resolve a schema and store it under its declared version",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			opts := snapshotPushOptions{Schema: *schemaPath, Name: *name, DB: *dbPath}
			if opts.Schema == "" || opts.DB == "" {
				project, err := loadNearestProject()
				if err != nil {
					return err
				}
				if opts.Schema == "" {
					if project == nil {
						return fmt.Errorf("--schema is required outside a lumos.toml project")
					}
					opts.Schema = project.SchemaPath()
				}
				if opts.DB == "" {
					opts.DB = snapshotDBDefault(project)
				}
			}
			return runSnapshotPush(os.Stdout, opts)
		},
	}
}

func runSnapshotPush(out io.Writer, opts snapshotPushOptions) error {
	if opts.Schema == "" {
		return fmt.Errorf("--schema is required")
	}

	resolved, _, err := resolver.NewResolver(resolver.DirLoader{}).ResolveSchema(context.Background(), opts.Schema)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", opts.Schema, err)
	}
	if resolved.Version == "" {
		return fmt.Errorf("%s declares no version; snapshots require one", opts.Schema)
	}

	entry := resolver.CanonicalPath(opts.Schema)
	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(entry), resolver.SchemaExt)
	}

	store, err := snapshot.Open(opts.DB, snapshot.Options{})
	if err != nil {
		return err
	}
	defer store.Close()

	snap := &snapshot.Snapshot{
		Name:    name,
		Version: resolved.Version,
		Source:  entry,
		Schema:  resolved,
	}
	if err := store.Save(context.Background(), snap); err != nil {
		return err
	}

	fmt.Fprintf(out, "Pushed snapshot %s@%s (%d types)\n", name, resolved.Version, resolved.Len())
	return nil
}

// snapshotListOptions holds the parsed flags of one list invocation.
type snapshotListOptions struct {
	Name string
	DB   string
	JSON bool
}

func newSnapshotListCommand() *Command {
	fs := flag.NewFlagSet("snapshot list", flag.ExitOnError)

	var (
		name   = fs.String("name", "", "Filter by schema name")
		dbPath = fs.String("db", "", "Snapshot database path (defaults to the project's store)")
		asJSON = fs.Bool("json", false, "Output in JSON format")
	)

	return &Command{
		Name:        "list",
		Description: "List stored snapshots",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			opts := snapshotListOptions{Name: *name, DB: *dbPath, JSON: *asJSON}
			if opts.DB == "" {
				project, err := loadNearestProject()
				if err != nil {
					return err
				}
				opts.DB = snapshotDBDefault(project)
			}
			return runSnapshotList(os.Stdout, opts)
		},
	}
}

func runSnapshotList(out io.Writer, opts snapshotListOptions) error {
	store, err := snapshot.Open(opts.DB, snapshot.Options{})
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.List(context.Background(), opts.Name)
	if err != nil {
		return err
	}
	if snaps == nil {
		snaps = []*snapshot.Snapshot{}
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}

	if len(snaps) == 0 {
		fmt.Fprintf(out, "No snapshots stored in %s\n", opts.DB)
		return nil
	}

	// Pretty table output
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tTAKEN\tSOURCE")
	for _, snap := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			snap.Name,
			snap.Version,
			snap.TakenAt.Format(time.RFC3339),
			snap.Source,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d snapshots\n", len(snaps))
	return nil
}

// snapshotPruneOptions holds the parsed flags of one prune invocation.
type snapshotPruneOptions struct {
	Name string
	Keep int
	DB   string
}

func newSnapshotPruneCommand() *Command {
	fs := flag.NewFlagSet("snapshot prune", flag.ExitOnError)

	var (
		name   = fs.String("name", "", "Prune only this schema's snapshots")
		keep   = fs.Int("keep", 0, "Newest snapshots to retain per schema (defaults to the project's setting)")
		dbPath = fs.String("db", "", "Snapshot database path (defaults to the project's store)")
	)

	return &Command{
		Name:        "prune",
		Description: "Drop old snapshots beyond the retention count",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			opts := snapshotPruneOptions{Name: *name, Keep: *keep, DB: *dbPath}
			if opts.DB == "" || opts.Keep == 0 {
				project, err := loadNearestProject()
				if err != nil {
					return err
				}
				if opts.DB == "" {
					opts.DB = snapshotDBDefault(project)
				}
				if opts.Keep == 0 {
					opts.Keep = defaultSnapshotKeep
					if project != nil {
						opts.Keep = project.Snapshots.Keep
					}
				}
			}
			return runSnapshotPrune(os.Stdout, opts)
		},
	}
}

func runSnapshotPrune(out io.Writer, opts snapshotPruneOptions) error {
	if opts.Keep < 1 {
		return fmt.Errorf("--keep must be at least 1")
	}

	store, err := snapshot.Open(opts.DB, snapshot.Options{})
	if err != nil {
		return err
	}
	defer store.Close()

	var pruned int
	if opts.Name == "" {
		pruned, err = store.PruneAll(context.Background(), opts.Keep)
	} else {
		pruned, err = store.Prune(context.Background(), opts.Name, opts.Keep)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pruned %d snapshots (keeping %d per schema)\n", pruned, opts.Keep)
	return nil
}

// snapshotDBDefault picks the store path: the project's when a manifest
// is in scope, the working-directory default otherwise.
func snapshotDBDefault(project *config.Project) string {
	if project != nil {
		return project.SnapshotPath()
	}
	return defaultSnapshotPath
}
