package main

// Must be first import - fixes terminal detection before lipgloss loads
import _ "github.com/wahlandcase/lineauthor/internal/termfix"

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	followFlag  string
	noColorFlag bool
	revFlag     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lineauthor",
		Short:         "Show who authored each line of a file, colored by age",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&followFlag, "follow", "", "Movement detection: inactive, same-commit or all-commits (default from config)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newBlameCmd(),
		newViewCmd(),
		newConfigCmd(),
		newDoctorCmd(),
	)
	return rootCmd
}
