// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "peerhive",
	Short: "PeerHive is a social-networking backend with group memberships",
	Long: `PeerHive is a social-networking backend where users form groups,
post content with attachments, react to posts, and manage group membership
through invitation and approval workflows.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
