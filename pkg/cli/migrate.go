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

	"golang.org/x/sync/errgroup"

	"github.com/getlumos/lumos-sub002/pkg/compat"
	"github.com/getlumos/lumos-sub002/pkg/emitters"
	"github.com/getlumos/lumos-sub002/pkg/migrate"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
)

// migrateOptions holds the parsed flags of one migrate invocation.
type migrateOptions struct {
	From        string
	To          string
	Out         string
	Language    string
	ManifestDir string
	DryRun      bool
	Force       bool
}

func newMigrateCommand() *Command {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)

	var (
		from        = fs.String("from", "", "Path to the baseline schema (required)")
		to          = fs.String("to", "", "Path to the candidate schema (required)")
		out         = fs.String("out", "", "Plan path; stdout when omitted")
		language    = fs.String("language", "", "Target emitter language; the emitter must support migrations")
		manifestDir = fs.String("manifests", "", "Emitter manifest directory (defaults to the project's)")
		dryRun      = fs.Bool("dry-run", false, "Compute and print the plan without writing anything")
		force       = fs.Bool("force", false, "Accept plan entries that cannot be defaulted mechanically")
	)

	return &Command{
		Name:        "migrate",
		Description: "Derive a migration plan between two schema versions",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			opts := migrateOptions{
				From:        *from,
				To:          *to,
				Out:         *out,
				Language:    *language,
				ManifestDir: *manifestDir,
				DryRun:      *dryRun,
				Force:       *force,
			}
			if opts.ManifestDir == "" {
				project, err := loadNearestProject()
				if err != nil {
					return err
				}
				if project != nil {
					opts.ManifestDir = project.ManifestDir()
				}
			}
			return runMigrate(os.Stdout, opts)
		},
	}
}

func runMigrate(out io.Writer, opts migrateOptions) error {
	if opts.From == "" || opts.To == "" {
		return fmt.Errorf("both --from and --to are required")
	}

	var fromSchema, toSchema *resolver.Schema
	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		s, _, err := resolver.NewResolver(resolver.DirLoader{}).ResolveSchema(gctx, opts.From)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", opts.From, err)
		}
		fromSchema = s
		return nil
	})
	g.Go(func() error {
		s, _, err := resolver.NewResolver(resolver.DirLoader{}).ResolveSchema(gctx, opts.To)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", opts.To, err)
		}
		toSchema = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	report, err := compat.Diff(fromSchema, toSchema)
	if err != nil {
		return fmt.Errorf("compatibility check failed: %w", err)
	}
	plan := migrate.Derive(report, toSchema)

	if opts.Language != "" {
		manifest, err := lookupEmitter(opts.ManifestDir, opts.Language)
		if err != nil {
			return err
		}
		if !manifest.SupportsMigrations {
			return fmt.Errorf("emitter %s does not support migrations", manifest.Name)
		}
	}

	// A dry run only inspects the plan, so force gating does not apply:
	// nothing is being accepted.
	if opts.DryRun {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}

	if gated := gatedTypes(plan); len(gated) > 0 && !opts.Force {
		return fmt.Errorf("migration plan requires --force: %s", strings.Join(gated, ", "))
	}

	if opts.Out == "" || opts.Out == "-" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if dir := filepath.Dir(opts.Out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(opts.Out, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	fmt.Fprintf(out, "Wrote migration plan: %s (%d entries)\n", opts.Out, len(plan.Entries))
	if gated := gatedTypes(plan); len(gated) > 0 {
		fmt.Fprintf(out, "  forced entries: %s\n", strings.Join(gated, ", "))
	}
	return nil
}

// gatedTypes returns the names of plan entries gated behind --force.
func gatedTypes(plan *migrate.Plan) []string {
	var gated []string
	for _, entry := range plan.Entries {
		if entry.RequiresForce {
			gated = append(gated, entry.TypeName)
		}
	}
	return gated
}

// lookupEmitter discovers manifests under dir and picks the emitter
// registered for the language.
func lookupEmitter(dir, language string) (*emitters.Manifest, error) {
	if dir == "" {
		return nil, fmt.Errorf("no emitter manifest directory configured; pass --manifests or add one to lumos.toml")
	}
	registry := emitters.NewRegistry([]string{dir}, quietLogger())
	if _, err := registry.Discover(); err != nil {
		return nil, fmt.Errorf("discovering emitters: %w", err)
	}
	return registry.ForLanguage(language)
}
