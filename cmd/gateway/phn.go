package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/healthgateway/gateway/internal/platform/phn"
)

var errInvalidPHN = errors.New("one or more PHNs are invalid")

func phnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phn",
		Short: "Personal Health Number utilities",
	}

	validateCmd := &cobra.Command{
		Use:   "validate <phn>...",
		Short: "Check PHNs against the mod-11 checksum",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPHNValidate(os.Stdout, args)
		},
	}
	cmd.AddCommand(validateCmd)
	return cmd
}

// runPHNValidate prints one masked line per argument and fails if any
// argument is not a valid PHN.
func runPHNValidate(out io.Writer, args []string) error {
	invalid := 0
	for _, arg := range args {
		result := "VALID"
		if !phn.Valid(arg) {
			result = "INVALID"
			invalid++
		}
		fmt.Fprintf(out, "%s\t%s\n", phn.Mask(arg), result)
	}
	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidPHN, invalid, len(args))
	}
	return nil
}
