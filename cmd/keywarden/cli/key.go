package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/model"
)

func newKeyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Inspect and bootstrap API keys directly in the store",
		Long: `Operator access to the credential store. Keys are normally issued and
deleted through the HTTP API by an admin key; these commands exist to
bootstrap the first admin and to inspect what has been issued.`,
	}

	cmd.AddCommand(newKeyImportCmd(opts))
	cmd.AddCommand(newKeyListCmd(opts))

	return cmd
}

// ---------- key import ----------

func newKeyImportCmd(opts *rootOptions) *cobra.Command {
	var (
		hash    string
		isAdmin bool
		notes   string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a pre-hashed API key",
		Example: `  keywarden keygen --json > admin.json
  keywarden key import --admin --notes "bootstrap" --hash "$(jq -r .hashed_api_key admin.json)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyImport(cmd, opts, hash, isAdmin, notes)
		},
	}

	cmd.Flags().StringVar(&hash, "hash", "", "bcrypt hash produced by 'keywarden keygen' (required)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant admin privilege")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.MarkFlagRequired("hash")

	return cmd
}

func runKeyImport(cmd *cobra.Command, opts *rootOptions, hash string, isAdmin bool, notes string) error {
	if err := credential.ValidateHash(hash); err != nil {
		return fmt.Errorf("invalid --hash: %w", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cred := &model.Credential{HashedSecret: hash, IsAdmin: isAdmin, Notes: notes}
	if err := st.CreateCredential(context.Background(), cred); err != nil {
		return fmt.Errorf("import api key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s API key with id %d\n", cred.Tier(), cred.ID)
	return nil
}

// ---------- key list ----------

func newKeyListCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(cmd, opts, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(cmd *cobra.Command, opts *rootOptions, jsonOutput bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	keys, err := st.ListCredentials(context.Background())
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if keys == nil {
			keys = []model.Credential{}
		}
		return printJSON(out, keys)
	}

	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys issued. Bootstrap one with 'keywarden keygen' and 'keywarden key import --admin'.")
		return nil
	}

	fmt.Fprintf(out, "%-8s %-8s %-20s %s\n", "ID", "TIER", "CREATED", "NOTES")
	fmt.Fprintf(out, "%-8s %-8s %-20s %s\n", "--", "----", "-------", "-----")
	for _, k := range keys {
		fmt.Fprintf(out, "%-8d %-8s %-20s %s\n", k.ID, k.Tier(), k.CreatedAt.Format(time.DateTime), k.Notes)
	}
	return nil
}
