package main

import (
	"fmt"
	"os"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"
)

var keyOutFile string

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage Nostr keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new Nostr key pair",
	Long: `Generate a new secp256k1 key pair for badge operations.

The secret key is written to a file in hex form; the npub and nsec
encodings are printed for sharing and backup.`,
	Example: `  # Generate a key with the default file name
  povmint key gen

  # Generate a key for a dedicated issuer identity
  povmint key gen --out issuer.key`,
	RunE: func(_ *cobra.Command, _ []string) error {
		sk := nostr.GeneratePrivateKey()
		pk, err := nostr.GetPublicKey(sk)
		if err != nil {
			return fmt.Errorf("failed to derive public key: %w", err)
		}

		if err := os.WriteFile(keyOutFile, []byte(sk+"\n"), 0600); err != nil {
			return fmt.Errorf("failed to write key file: %w", err)
		}
		fmt.Printf("✅ Secret key saved to %s\n", keyOutFile)

		npub, err := nip19.EncodePublicKey(pk)
		if err != nil {
			return err
		}
		nsec, err := nip19.EncodePrivateKey(sk)
		if err != nil {
			return err
		}
		fmt.Printf("🔑 npub: %s\n", npub)
		fmt.Printf("🔒 nsec: %s (keep this private)\n", nsec)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd)

	keyGenCmd.Flags().StringVar(&keyOutFile, "out", "povmint.key", "Output path for the secret key (hex)")
}
