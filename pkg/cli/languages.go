package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/getlumos/lumos-sub002/pkg/emitters"
	"github.com/getlumos/lumos-sub002/pkg/observability"
)

// defaultManifestDir is the emitter manifest directory used when no
// project manifest overrides it.
const defaultManifestDir = ".lumos/emitters"

// languagesOptions holds the parsed flags of one languages invocation.
type languagesOptions struct {
	ManifestDir string
	JSON        bool
}

func newLanguagesCommand() *Command {
	fs := flag.NewFlagSet("languages", flag.ExitOnError)

	var (
		manifestDir = fs.String("manifests", "", "Emitter manifest directory (defaults to the project's)")
		asJSON      = fs.Bool("json", false, "Output in JSON format")
	)

	return &Command{
		Name:        "languages",
		Description: "List registered emitter manifests",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			opts := languagesOptions{ManifestDir: *manifestDir, JSON: *asJSON}
			if opts.ManifestDir == "" {
				project, err := loadNearestProject()
				if err != nil {
					return err
				}
				opts.ManifestDir = defaultManifestDir
				if project != nil {
					opts.ManifestDir = project.ManifestDir()
				}
			}
			return runLanguages(os.Stdout, opts)
		},
	}
}

func runLanguages(out io.Writer, opts languagesOptions) error {
	registry := emitters.NewRegistry([]string{opts.ManifestDir}, quietLogger())
	if _, err := registry.Discover(); err != nil {
		return fmt.Errorf("discovering emitters: %w", err)
	}
	manifests := registry.List()

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(manifests)
	}

	if len(manifests) == 0 {
		fmt.Fprintf(out, "No emitters registered in %s\n", opts.ManifestDir)
		return nil
	}

	// Pretty table output
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tLANGUAGE\tVERSION\tEXTENSION\tMIGRATIONS")
	for _, m := range manifests {
		migrations := "✓"
		if !m.SupportsMigrations {
			migrations = "✗"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.Name,
			m.Language,
			m.Version,
			m.OutputExtension,
			migrations,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d emitters\n", registry.Len())
	return nil
}

// quietLogger keeps emitter discovery from chattering over command
// output; real failures still reach stderr.
func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, os.Stderr)
}
