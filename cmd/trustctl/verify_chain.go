package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"promptpilot/trustd/internal/ledger"
)

var verifyChainDB string

func init() {
	verifyChainCmd.Flags().StringVar(&verifyChainDB, "db", "admin_logs.db", "path to the audit ledger database")
	rootCmd.AddCommand(verifyChainCmd)
}

var verifyChainCmd = &cobra.Command{
	Use:   "verify-chain",
	Short: "Verify an audit ledger offline",
	Long: `Recomputes the hash chain of an audit ledger database and reports
the first entry whose link does not hold. Works on a copy of the
database without a running daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(verifyChainDB); err != nil {
			return fmt.Errorf("open %s: %w", color.YellowString(verifyChainDB), err)
		}
		led, err := ledger.Open(verifyChainDB)
		if err != nil {
			return err
		}
		defer led.Close()

		valid, badID, err := led.VerifyChain()
		if err != nil {
			return err
		}
		if !valid {
			fmt.Println(color.RedString("✗") + fmt.Sprintf(" chain broken at entry id=%d", badID))
			os.Exit(1)
		}
		head, err := led.Head()
		if err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓") + " chain intact")
		fmt.Println("  head: " + color.YellowString(head))
		return nil
	},
}
