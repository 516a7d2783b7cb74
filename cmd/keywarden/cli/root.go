package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keywarden/keywarden/internal/config"
)

// rootOptions is shared by every subcommand. Each command tree gets its own
// viper instance so flags bound by one invocation never leak into another.
type rootOptions struct {
	cfgFile string
	version string
	v       *viper.Viper
}

// loadConfig reads the config file, environment and bound flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.v, o.cfgFile)
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	opts := &rootOptions{version: version, v: viper.New()}

	cmd := &cobra.Command{
		Use:   "keywarden",
		Short: "Issue, revoke and audit API keys",
		Long: `keywarden: API key issuance and verification with an audit trail.

Admin keys create and delete keys over HTTP. Every request to /api is
recorded with the key that made it. Bootstrap the first admin key offline
with 'keywarden keygen' and 'keywarden key import'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./keywarden.yaml)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newKeygenCmd(opts))
	cmd.AddCommand(newKeyCmd(opts))
	cmd.AddCommand(newAuditCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}
