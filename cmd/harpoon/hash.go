package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/harpoon/internal/hash/sha3"
)

func newHashCmd(_ *rootOptions) *cobra.Command {
	return newIdentityCmd("hash", "Print the SHA3-256 of a body", sha3.Hash)
}

func newFingerprintCmd(_ *rootOptions) *cobra.Command {
	return newIdentityCmd("fingerprint", "Print the short fingerprint of a body", sha3.Fingerprint)
}

func newIdentityCmd(use, short string, fn func(string) string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   use + " [body]",
		Short: short,
		Long: short + `.

The body is the single argument, the contents of --file, or stdin. Bytes are
used exactly as given: no trailing newline is added or removed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body string
			switch {
			case len(args) == 1 && file != "":
				return fmt.Errorf("pass a body or --file, not both")
			case len(args) == 1:
				body = args[0]
			default:
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				body = string(data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), fn(body))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the body from a file")
	return cmd
}
