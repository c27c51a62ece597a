package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/getlumos/lumos-sub002/pkg/emitters"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/workspace"
)

// buildOptions holds the parsed flags of one build invocation.
type buildOptions struct {
	Schema string
	Out    string
}

func newBuildCommand() *Command {
	fs := flag.NewFlagSet("build", flag.ExitOnError)

	var (
		schemaPath = fs.String("schema", "", "Entry schema path (defaults to the project manifest's schema)")
		out        = fs.String("out", "", "Artifact path; stdout when omitted")
	)

	return &Command{
		Name:        "build",
		Description: "Resolve a schema and emit its IR artifact",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			opts := buildOptions{Schema: *schemaPath, Out: *out}
			if opts.Schema == "" {
				project, err := loadNearestProject()
				if err != nil {
					return err
				}
				if project == nil {
					return fmt.Errorf("--schema is required outside a lumos.toml project")
				}
				opts.Schema = project.SchemaPath()
			}
			return runBuild(os.Stdout, opts)
		},
	}
}

func runBuild(out io.Writer, opts buildOptions) error {
	if opts.Schema == "" {
		return fmt.Errorf("--schema is required")
	}

	resolved, files, err := resolver.NewResolver(resolver.DirLoader{}).ResolveSchema(context.Background(), opts.Schema)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", opts.Schema, err)
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	artifact := &emitters.Artifact{
		Schema:      resolver.CanonicalPath(opts.Schema),
		Version:     resolved.Version,
		Fingerprint: workspace.Fingerprint(files),
		GeneratedAt: time.Now().UTC(),
		Files:       paths,
		IR:          resolved,
	}

	// Without an output path the artifact goes to stdout and nothing
	// else does, so the command stays pipeable.
	if opts.Out == "" || opts.Out == "-" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(artifact)
	}

	if dir := filepath.Dir(opts.Out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := emitters.SaveArtifact(opts.Out, artifact); err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote artifact: %s (%d types, %d files)\n", opts.Out, resolved.Len(), len(files))
	return nil
}
