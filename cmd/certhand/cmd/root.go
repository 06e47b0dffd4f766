package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/certhand/ca"
	bboltstorage "github.com/jmcleod/certhand/storage/bbolt"
)

// Version can be set at build time by running
// go build -ldflags "-X github.com/jmcleod/certhand/cmd/certhand/cmd.Version=$(git describe --tags)"
var Version = "dev"

var (
	dataDir    string
	traceMode  bool
	caName     string
	passphrase string
)

var rootCmd = &cobra.Command{
	Use:   "certhand",
	Short: "CertHand is a certificate authority administration tool",
	Long: `Administer a certificate authority: list, sign, generate, revoke,
verify, print and destroy host certificates, and serve the admin API.
Complete documentation is available at https://github.com/jmcleod/certhand`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent CA data")
	rootCmd.PersistentFlags().BoolVar(&traceMode, "trace", false, "Emit stack traces on suppressed errors")
	rootCmd.PersistentFlags().StringVar(&caName, "ca-name", "", "CA certificate subject on first initialization")
	rootCmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "Passphrase protecting the CA key at rest")
}

// openAuthority opens the CA backed by the configured data directory.
// The returned close function releases the underlying store.
func openAuthority(cmd *cobra.Command) (*ca.CA, func() error, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dataDir, "ca.db"), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CA storage: %w", err)
	}

	authority, err := ca.Open(cmd.Context(), repo, ca.Config{
		CommonName: caName,
		Passphrase: passphrase,
	})
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("failed to open CA: %w", err)
	}
	return authority, repo.Close, nil
}
