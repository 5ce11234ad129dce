// trustctl is the operator companion to trustd: it mints the admin
// trust anchor, signs unlock challenges offline and audits ledger
// databases without a running daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trustctl",
	Short: "Operator tooling for the trustd daemon",
	Long: `trustctl manages the operator side of a trustd deployment.

Available Commands:
  keygen        Generate the admin keypair and trust anchor
  sign          Sign an admin unlock nonce with the private key
  verify-chain  Recompute and verify an audit ledger offline

Run 'trustctl help <command>' for details on a specific command.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
