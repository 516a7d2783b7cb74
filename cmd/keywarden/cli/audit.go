package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/model"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the request audit trail",
	}

	cmd.AddCommand(newAuditListCmd(opts))

	return cmd
}

func newAuditListCmd(opts *rootOptions) *cobra.Command {
	var (
		credentialID int64
		limit        int
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent audit entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := model.AuditFilter{Limit: limit}
			if cmd.Flags().Changed("credential-id") {
				filter.CredentialID = &credentialID
			}
			return runAuditList(cmd, opts, filter, jsonOutput)
		},
	}

	cmd.Flags().Int64Var(&credentialID, "credential-id", 0, "Only entries made with this key")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAuditList(cmd *cobra.Command, opts *rootOptions, filter model.AuditFilter, jsonOutput bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListAuditEntries(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if entries == nil {
			entries = []model.AuditEntry{}
		}
		return printJSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries.")
		return nil
	}

	fmt.Fprintf(out, "%-20s %-8s %-7s %-6s %-16s %s\n", "TIME", "KEY", "METHOD", "STATUS", "SOURCE", "ENDPOINT")
	for _, e := range entries {
		key := "-"
		if e.CredentialID != nil {
			key = fmt.Sprint(*e.CredentialID)
		}
		fmt.Fprintf(out, "%-20s %-8s %-7s %-6d %-16s %s\n",
			e.Timestamp.Format(time.DateTime), key, e.Method, e.StatusCode, e.SourceAddress, e.Endpoint)
	}
	return nil
}
