package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/getlumos/lumos-sub002/pkg/config"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// ExitError carries a specific process exit code through the command
// return path. Commands that already printed their result return one
// with an empty message so main exits silently with the right code.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Msg
}

// ExitCode maps a command error onto the process exit code: ExitError
// codes pass through, any other error maps to 1, nil to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "lumos",
		Description: "Lumos - Schema Resolution & Compatibility CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("lumos", flag.ExitOnError),
	}

	// Add subcommands
	root.Subcommands["check"] = newCheckCommand()
	root.Subcommands["build"] = newBuildCommand()
	root.Subcommands["migrate"] = newMigrateCommand()
	root.Subcommands["snapshot"] = newSnapshotCommand()
	root.Subcommands["languages"] = newLanguagesCommand()

	return root
}

// Execute runs the command
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-10s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// loadNearestProject finds and loads the manifest governing the current
// directory. A missing manifest is not an error; callers fall back to
// flag defaults.
func loadNearestProject() (*config.Project, error) {
	path, err := config.FindProject(".")
	if errors.Is(err, config.ErrNoProject) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return config.LoadProject(path)
}

// flagPassed reports whether the named flag appeared on the command
// line, distinguishing an explicit value from an omitted flag.
func flagPassed(fs *flag.FlagSet, name string) bool {
	passed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
