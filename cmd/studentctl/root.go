package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studentctl",
		Short:         "Student toolkit calculators and data tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "print results as JSON")

	root.AddCommand(
		newGPACmd(),
		newDeterminantCmd(),
		newBaseCmd(),
		newMotionCmd(),
		newPrimeCmd(),
		newImportLegacyCmd(),
	)
	return root
}

// printResult writes v as indented JSON when --json is set and calls text otherwise.
func printResult(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
