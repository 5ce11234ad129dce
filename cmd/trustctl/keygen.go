package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	keygenPubOut  string
	keygenPrivOut string
	keygenForce   bool
)

func init() {
	keygenCmd.Flags().StringVar(&keygenPubOut, "pub", "admin_public.pem", "output path for the public trust anchor")
	keygenCmd.Flags().StringVar(&keygenPrivOut, "priv", "admin_private.pem", "output path for the private signing key")
	keygenCmd.Flags().BoolVarP(&keygenForce, "force", "f", false, "overwrite existing key files")
	rootCmd.AddCommand(keygenCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the admin ed25519 keypair",
	Long: `Generates a fresh ed25519 keypair. The public half is the trust
anchor trustd loads at startup; the private half stays with the operator
and never touches the daemon host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !keygenForce {
			for _, path := range []string{keygenPubOut, keygenPrivOut} {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists; pass %s to overwrite",
						color.YellowString(path), color.YellowString("--force"))
				}
			}
		}

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate keypair: %w", err)
		}

		pubDER, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return fmt.Errorf("encode public key: %w", err)
		}
		privDER, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return fmt.Errorf("encode private key: %w", err)
		}

		pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
		privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

		if err := os.WriteFile(keygenPubOut, pubPEM, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", keygenPubOut, err)
		}
		if err := os.WriteFile(keygenPrivOut, privPEM, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", keygenPrivOut, err)
		}

		fmt.Println(color.GreenString("✓") + " admin keypair generated")
		fmt.Println("  trust anchor: " + color.YellowString(keygenPubOut))
		fmt.Println("  private key:  " + color.YellowString(keygenPrivOut))
		fmt.Println(color.CyanString("→") + " point trustd at the anchor via admin_key_path or TRUSTD_ADMIN_KEY")
		return nil
	},
}
