package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/credential"
)

func newKeygenCmd(opts *rootOptions) *cobra.Command {
	var (
		cost       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a raw API key and its bcrypt hash offline",
		Long: `Generate a fresh API key and its bcrypt hash without touching the store
or the network. Import the hash with 'keywarden key import' to bootstrap
the first admin key; hand the raw key to whoever will use it.`,
		Example: `  keywarden keygen
  keywarden keygen --json | jq -r .hashed_api_key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cost == 0 {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				cost = cfg.Auth.BcryptCost
			}
			return runKeygen(cmd, cost, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default from auth.bcrypt_cost)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type keygenOutput struct {
	APIKey       string `json:"api_key"`
	HashedAPIKey string `json:"hashed_api_key"`
}

func runKeygen(cmd *cobra.Command, cost int, jsonOutput bool) error {
	secret, err := credential.NewGenerator().Generate()
	if err != nil {
		return err
	}
	hashed, err := credential.NewHasher(cost).Hash(secret)
	if err != nil {
		return fmt.Errorf("hash api key: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return printJSON(out, keygenOutput{APIKey: secret, HashedAPIKey: hashed})
	case isTerminal(out):
		fmt.Fprintln(out, "API key generated:")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Key:   %s\n", secret)
		fmt.Fprintf(out, "  Hash:  %s\n", hashed)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Save the key now - only the hash can be stored.")
		fmt.Fprintln(out, "  Import it with: keywarden key import --admin --hash '<hash>'")
	default:
		fmt.Fprintf(out, "api_key=%s\n", secret)
		fmt.Fprintf(out, "hashed_api_key=%s\n", hashed)
	}
	return nil
}
