package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the siwa command
var rootCmd = &cobra.Command{
	Use:   "siwa",
	Short: "Sign in with Aptos server and tools",
	Long: `siwa runs a Sign in with Aptos relying party and inspects sign-in messages.

  siwa serve               start the HTTP authentication server
  siwa message create      render the message a wallet signs
  siwa message parse       parse a signed message back into its fields
  siwa message signing     print the bytes a wallet actually signs`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(messageCmd)
}
