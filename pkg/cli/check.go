package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/sync/errgroup"

	"github.com/getlumos/lumos-sub002/pkg/compat"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
)

// checkOptions holds the parsed flags of one check invocation.
type checkOptions struct {
	From       string
	To         string
	Format     string
	Strict     bool
	Verbose    bool
	SourceDiff bool
}

func newCheckCommand() *Command {
	fs := flag.NewFlagSet("check", flag.ExitOnError)

	var (
		from       = fs.String("from", "", "Path to the baseline schema (required)")
		to         = fs.String("to", "", "Path to the candidate schema (required)")
		format     = fs.String("format", "text", "Output format: text, json")
		strict     = fs.Bool("strict", false, "Exit 2 when warnings are present")
		verbose    = fs.Bool("verbose", false, "Show info-level findings")
		sourceDiff = fs.Bool("source-diff", false, "Print a line diff of the two entry files")
	)

	return &Command{
		Name:        "check",
		Description: "Check binary compatibility between two schema versions",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			opts := checkOptions{
				From:       *from,
				To:         *to,
				Format:     *format,
				Strict:     *strict,
				Verbose:    *verbose,
				SourceDiff: *sourceDiff,
			}
			// The project manifest supplies the strict default; an
			// explicit flag wins either way.
			if !flagPassed(fs, "strict") {
				project, err := loadNearestProject()
				if err != nil {
					return err
				}
				if project != nil {
					opts.Strict = project.Strict
				}
			}
			return runCheck(os.Stdout, opts)
		},
	}
}

func runCheck(out io.Writer, opts checkOptions) error {
	if opts.From == "" || opts.To == "" {
		return fmt.Errorf("both --from and --to are required")
	}
	if opts.Format != "text" && opts.Format != "json" {
		return fmt.Errorf("unknown format: %s", opts.Format)
	}

	// Each side resolves through its own resolver so neither pass can
	// see the other's parse cache: same-path files may hold different
	// content across the two working trees being compared.
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
	doc := compat.NewDocument(report)

	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
	} else {
		printCheckText(out, doc, opts.Verbose)
	}

	if opts.SourceDiff {
		if err := printSourceDiff(out, opts.From, opts.To); err != nil {
			return err
		}
	}

	return checkExitStatus(doc, opts.Strict)
}

// checkExitStatus maps a finished check onto the exit contract: breaking
// changes exit 1, warnings exit 2 under --strict, anything else exits
// clean. Strictness is applied here, after the engine ran; the report
// itself never reclassifies warnings.
func checkExitStatus(doc *compat.Document, strict bool) error {
	if !doc.Compatible {
		return &ExitError{Code: 1}
	}
	if strict && doc.Warnings > 0 {
		return &ExitError{Code: 2}
	}
	return nil
}

func printCheckText(out io.Writer, doc *compat.Document, verbose bool) {
	fmt.Fprintf(out, "Compatibility: %s -> %s\n", versionLabel(doc.FromVersion), versionLabel(doc.ToVersion))
	fmt.Fprintf(out, "Result: ")
	if doc.Compatible {
		fmt.Fprintf(out, "\033[32mCOMPATIBLE\033[0m\n")
	} else {
		fmt.Fprintf(out, "\033[31mINCOMPATIBLE\033[0m\n")
	}
	if !doc.VersionBumpValid {
		fmt.Fprintf(out, "Version bump: \033[31mINSUFFICIENT\033[0m\n")
	}

	fmt.Fprintf(out, "\nSummary:\n")
	if doc.BreakingChanges > 0 {
		fmt.Fprintf(out, "  Breaking: \033[31m%d\033[0m\n", doc.BreakingChanges)
	} else {
		fmt.Fprintf(out, "  Breaking: %d\n", doc.BreakingChanges)
	}
	if doc.Warnings > 0 {
		fmt.Fprintf(out, "  Warnings: \033[33m%d\033[0m\n", doc.Warnings)
	} else {
		fmt.Fprintf(out, "  Warnings: %d\n", doc.Warnings)
	}
	fmt.Fprintf(out, "  Info:     %d\n", doc.Info)

	hidden := 0
	printedAny := false
	for _, report := range doc.Reports {
		for _, issue := range report.Issues {
			if !verbose && issue.Level == compat.SeverityInfo {
				hidden++
				continue
			}
			if !printedAny {
				fmt.Fprintf(out, "\nFindings:\n\n")
				printedAny = true
			}
			printIssue(out, issue)
		}
	}
	if hidden > 0 {
		fmt.Fprintf(out, "\n(%d info findings hidden; use --verbose to show them)\n", hidden)
	}
}

func printIssue(out io.Writer, issue compat.Issue) {
	levelStr := issue.Level.String()
	switch issue.Level {
	case compat.SeverityBreaking:
		levelStr = fmt.Sprintf("\033[31m%s\033[0m", levelStr)
	case compat.SeverityWarning:
		levelStr = fmt.Sprintf("\033[33m%s\033[0m", levelStr)
	case compat.SeverityInfo:
		levelStr = fmt.Sprintf("\033[36m%s\033[0m", levelStr)
	}

	fmt.Fprintf(out, "[%s] %s\n", levelStr, issue.TypeName)
	fmt.Fprintf(out, "  Message:  %s\n", issue.Message)
	if issue.Reason != "" {
		fmt.Fprintf(out, "  Reason:   %s\n", issue.Reason)
	}
	if issue.Change != nil {
		fmt.Fprintf(out, "  Change:   %s\n", changeLabel(issue.Change))
	}
	if issue.Suggestion != "" {
		fmt.Fprintf(out, "  Hint:     %s\n", issue.Suggestion)
	}
	fmt.Fprintln(out)
}

// changeLabel renders the structural payload of an issue in one line.
func changeLabel(change *compat.Change) string {
	label := change.Kind.String()
	if change.Field != "" {
		label += " " + change.Field
	}
	if change.OldType != "" || change.NewType != "" {
		label += fmt.Sprintf(" (%s -> %s)", change.OldType, change.NewType)
	}
	return label
}

func versionLabel(version *string) string {
	if version == nil {
		return "(no version)"
	}
	return *version
}

// printSourceDiff prints a colorized line diff of the two entry files.
// Only the entries are compared; imported files do not participate.
func printSourceDiff(out io.Writer, fromPath, toPath string) error {
	fromSrc, err := os.ReadFile(resolver.CanonicalPath(fromPath))
	if err != nil {
		return fmt.Errorf("reading %s: %w", fromPath, err)
	}
	toSrc, err := os.ReadFile(resolver.CanonicalPath(toPath))
	if err != nil {
		return fmt.Errorf("reading %s: %w", toPath, err)
	}

	dmp := diffmatchpatch.New()
	fromChars, toChars, lines := dmp.DiffLinesToChars(string(fromSrc), string(toSrc))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(fromChars, toChars, false), lines)

	fmt.Fprintf(out, "\nSource diff: %s -> %s\n", fromPath, toPath)
	for _, d := range diffs {
		prefix, color, reset := " ", "", ""
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix, color, reset = "+", "\033[32m", "\033[0m"
		case diffmatchpatch.DiffDelete:
			prefix, color, reset = "-", "\033[31m", "\033[0m"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Fprintf(out, "%s%s%s%s\n", color, prefix, line, reset)
		}
	}
	return nil
}
