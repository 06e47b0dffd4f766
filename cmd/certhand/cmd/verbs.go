package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/certhand/admin"
	"github.com/jmcleod/certhand/internal/util"
)

var (
	targetAll        bool
	targetSigned     bool
	allowDNSAltNames bool
	dnsAltNames      []string
)

// runVerb builds an administrative command from CLI-shaped input and
// applies it against the configured authority.
func runVerb(cmd *cobra.Command, verb admin.Verb, hosts []string, opts admin.Options) error {
	targets, err := admin.TargetsFromFlags(targetAll, targetSigned, util.NormalizeHosts(hosts))
	if err != nil {
		return err
	}

	command, err := admin.New(verb, targets, opts,
		admin.WithOutput(cmd.OutOrStdout()),
		admin.WithDiagnostics(cmd.ErrOrStderr()),
		admin.WithTrace(traceMode),
	)
	if err != nil {
		return err
	}

	authority, closeStore, err := openAuthority(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	return command.Apply(cmd.Context(), authority)
}

// addTargetFlags registers the sentinel selection flags shared by every verb.
func addTargetFlags(c *cobra.Command) {
	c.Flags().BoolVar(&targetAll, "all", false, "Apply to all hosts the CA knows")
	c.Flags().BoolVar(&targetSigned, "signed", false, "Apply to all hosts with issued certificates")
}

var listCmd = &cobra.Command{
	Use:   "list [hosts...]",
	Short: "Report certificate status for the selected hosts",
	Long: `Classifies each selected host as a pending request, a valid signed
certificate, or an invalid certificate, and prints one aligned line per
host. Without hosts or flags, lists pending requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, admin.VerbList, args, nil)
	},
}

var signCmd = &cobra.Command{
	Use:   "sign [hosts...]",
	Short: "Sign pending certificate requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, admin.VerbSign, args, admin.Options{
			admin.OptAllowDNSAltNames: allowDNSAltNames,
		})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <hosts...>",
	Short: "Generate a key pair and certificate for each named host",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, admin.VerbGenerate, args, admin.Options{
			admin.OptDNSAltNames: dnsAltNames,
		})
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <hosts...>",
	Short: "Revoke the certificates of the named hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, admin.VerbRevoke, args, nil)
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <hosts...>",
	Short: "Remove all CA records for the named hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, admin.VerbDestroy, args, nil)
	},
}

var printCmd = &cobra.Command{
	Use:   "print [hosts...]",
	Short: "Print the certificates of the selected hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, admin.VerbPrint, args, nil)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <hosts...>",
	Short: "Verify the certificates of the selected hosts against the CA",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, admin.VerbVerify, args, nil)
	},
}

func init() {
	for _, c := range []*cobra.Command{listCmd, signCmd, generateCmd, revokeCmd, destroyCmd, printCmd, verifyCmd} {
		addTargetFlags(c)
		rootCmd.AddCommand(c)
	}
	signCmd.Flags().BoolVar(&allowDNSAltNames, "allow-dns-alt-names", false, "Permit signing requests that carry DNS subject alternative names")
	generateCmd.Flags().StringSliceVar(&dnsAltNames, "dns-alt-names", nil, "DNS subject alternative names to embed in generated certificates")
}
