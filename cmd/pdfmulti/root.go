package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errUsage marks command-line mistakes (unknown flags, bad arguments).
var errUsage = errors.New("usage error")

// exitError carries an exit code for failures the command already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// newRootCmd builds the command tree.
func newRootCmd(env *Environment) *cobra.Command {
	common := &commonFlags{}

	root := &cobra.Command{
		Use:   "pdfmulti",
		Short: "Convert HTML content to paginated A4 PDF documents",
		Long: `pdfmulti stages HTML content, waits for every image to load, and prints
it to an A4 PDF named after the content's <title> with headless Chrome.

Markdown files are converted to HTML first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})
	addCommonFlags(root.PersistentFlags(), common)

	root.AddCommand(
		newConvertCmd(env, common),
		newServeCmd(env, common),
		newDoctorCmd(env, common),
		newVersionCmd(env),
	)
	return root
}

// run executes the CLI with args and returns the process exit code.
func run(args []string, env *Environment) int {
	ctx, stop := notifyContext(context.Background())
	defer stop()

	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetIn(env.Stdin)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, false))
	return exitCodeFor(err)
}

func newVersionCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of pdfmulti",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(env.Stdout, "pdfmulti version %s\n", Version)
		},
	}
}
