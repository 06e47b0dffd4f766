package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/certhand/internal/util"
)

var requestCmd = &cobra.Command{
	Use:   "request <host> <csr.pem>",
	Short: "Submit a certificate request for a host",
	Long: `Reads a PEM-encoded certificate request from file and records it
with the CA. The request stays in the waiting set until signed or
destroyed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := util.NormalizeHost(args[0])

		csrPEM, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read request file: %w", err)
		}

		authority, closeStore, err := openAuthority(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := authority.SubmitRequest(cmd.Context(), host, csrPEM); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "request recorded for %s\n", host)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
}
