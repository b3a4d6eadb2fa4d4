// Package main is the entry point for the povmint CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "povmint",
	Short: "Proof-of-visit badge minting over Nostr",
	Long: `Distribute and claim proof-of-visit badges over Nostr relays.
The admin session displays a rotating claim URL; attendees publish a signed
claim request and receive a badge award after the nonce checks out.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
