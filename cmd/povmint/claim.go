package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/povmint/povmint-core/pkg/badge"
	"github.com/povmint/povmint-core/pkg/claim"
	"github.com/povmint/povmint-core/pkg/protocol"
	"github.com/povmint/povmint-core/pkg/relay"
)

var (
	claimRelays  []string
	claimKeyFile string
	claimAs      string
	claimTimeout time.Duration
)

var claimCmd = &cobra.Command{
	Use:   "claim <claim-url>",
	Short: "Claim a badge from a scanned claim URL",
	Long: `Run the claimant side of the protocol: publish a signed claim
request carrying the scanned nonce and wait for the issuer's verdict.

Without --key-file an ephemeral session key is generated, matching the
behavior of a fresh browser session. --as attaches a claimant identity
(npub, nprofile, or name@domain) to the claim.`,
	Example: `  povmint claim 'https://badges.example.org/claim?nonce=…&naddr=…&t=…' \
    --as alice@example.org --relay wss://relay.damus.io`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var (
			signer *relay.KeySigner
			err    error
		)
		if claimKeyFile != "" {
			signer, err = loadSigner(claimKeyFile)
		} else {
			signer, err = relay.GenerateKeySigner()
		}
		if err != nil {
			return err
		}

		pool := relay.NewPool(claimRelays...)
		defer pool.Close()

		claimer, err := claim.New(claim.Config{
			Timeout:    claimTimeout,
			Signer:     signer,
			Publisher:  pool,
			Subscriber: pool,
			OnState: func(s claim.State) {
				fmt.Printf("⏳ %s…\n", s)
			},
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := claimer.Claim(ctx, args[0], claimAs)
		if err != nil {
			return err
		}
		if result.Failed() {
			return fmt.Errorf("claim failed: %s", result.Code)
		}
		fmt.Printf("🏅 Badge claimed! Award event %s\n", result.Response.EventID)

		if link, err := protocol.ParseClaimURL(args[0]); err == nil {
			fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if def, err := badge.FetchDefinition(fetchCtx, pool, protocol.DefaultKinds().BadgeDefinition, link.Naddr); err == nil {
				fmt.Printf("   %s — %s\n", def.Name, def.Description)
			}
		}
		return nil
	},
}

// loadSigner reads a secret key file written by `povmint key gen`.
func loadSigner(path string) (*relay.KeySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return relay.NewKeySigner(strings.TrimSpace(string(data)))
}

func init() {
	rootCmd.AddCommand(claimCmd)

	claimCmd.Flags().StringSliceVar(&claimRelays, "relay", []string{"wss://relay.damus.io"}, "Relay URL (repeatable)")
	claimCmd.Flags().StringVar(&claimKeyFile, "key-file", "", "Path to a secret key (default: ephemeral key)")
	claimCmd.Flags().StringVar(&claimAs, "as", "", "Claimant address (npub, nprofile, or name@domain)")
	claimCmd.Flags().DurationVar(&claimTimeout, "timeout", 150*time.Second, "How long to wait for the issuer's verdict")
}
