package main

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var signKeyPath string

func init() {
	signCmd.Flags().StringVarP(&signKeyPath, "key", "k", "admin_private.pem", "path to the admin private key")
	rootCmd.AddCommand(signCmd)
}

var signCmd = &cobra.Command{
	Use:   "sign <nonce>",
	Short: "Sign an admin unlock nonce",
	Long: `Signs the nonce issued by trustd's admin.nonce method and prints the
base64 signature to pass back through admin.unlock.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := loadSigningKey(signKeyPath)
		if err != nil {
			return err
		}
		sig := ed25519.Sign(priv, []byte(args[0]))
		fmt.Println(base64.StdEncoding.EncodeToString(sig))
		return nil
	},
}

func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", color.YellowString(path), err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found in key file")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key file does not hold an ed25519 private key")
	}
	return priv, nil
}
