// ABOUTME: Entry point for the helpdesk CLI
// ABOUTME: Interactive support chat with escalation to a human ticket queue

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _          _           _           _
 | |__   ___| |_ __   __| | ___  ___| | __
 | '_ \ / _ \ | '_ \ / _' |/ _ \/ __| |/ /
 | | | |  __/ | |_) | (_| |  __/\__ \   <
 |_| |_|\___|_| .__/ \__,_|\___||___/_|\_\
              |_|
`

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "Tech support chat with escalation to human agents",
	Long: `helpdesk runs multi-turn support conversations, suggests troubleshooting
steps, and hands unresolved sessions to a human queue as prioritized tickets.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the helpdesk version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "helpdesk %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "",
		"config file (default $HELPDESK_CONFIG or $XDG_CONFIG_HOME/helpdesk/config.yaml)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
