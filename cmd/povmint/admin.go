package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/povmint/povmint-core/pkg/badge"
	"github.com/povmint/povmint-core/pkg/mint"
	"github.com/povmint/povmint-core/pkg/registry"
	"github.com/povmint/povmint-core/pkg/relay"
)

var (
	adminRelays       []string
	adminKeyFile      string
	adminBadgeID      string
	adminBadgeName    string
	adminBadgeDesc    string
	adminBadgeImage   string
	adminTTL          time.Duration
	adminRefresh      time.Duration
	adminBaseURL      string
	adminRegistryFile string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Run an admin minting session",
	Long: `Run the admin side of the claim protocol: rotate the displayed
claim URL and turn inbound claim requests into badge awards.

The nonce TTL defaults to 120 seconds and can also be set through the
NONCE_EXPIRATION_SECONDS environment variable.`,
	Example: `  povmint admin --badge-id pizza-party-2025 \
    --relay wss://relay.damus.io --relay wss://nos.lol \
    --base-url https://badges.example.org/claim`,
	RunE: func(_ *cobra.Command, _ []string) error {
		signer, err := loadSigner(adminKeyFile)
		if err != nil {
			return err
		}
		issuer, err := signer.PublicKey(context.Background())
		if err != nil {
			return err
		}

		reg, err := registry.NewFile(adminRegistryFile)
		if err != nil {
			return err
		}

		pool := relay.NewPool(adminRelays...)
		defer pool.Close()

		minter, err := mint.New(mint.Config{
			Badge: badge.Definition{
				Identifier:   adminBadgeID,
				Name:         adminBadgeName,
				Description:  adminBadgeDesc,
				Image:        adminBadgeImage,
				IssuerPubkey: issuer,
			},
			TTL:             nonceTTL(),
			RefreshInterval: adminRefresh,
			BaseURL:         adminBaseURL,
			RelayHints:      adminRelays,
			Registry:        reg,
			Signer:          signer,
			Publisher:       pool,
			Subscriber:      pool,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		events := make(chan mint.Event, 16)
		done := make(chan error, 1)
		go func() { done <- minter.Run(ctx, events) }()

		for evt := range events {
			switch evt.Type {
			case mint.EventStarted:
				fmt.Printf("⚡ Minting session started for %s\n", minter.AddressRef())
			case mint.EventNonceRotated:
				url, err := minter.ClaimURL(*evt.Challenge)
				if err != nil {
					fmt.Fprintf(os.Stderr, "claim URL error: %v\n", err)
					continue
				}
				fmt.Printf("🔗 %s (valid %s)\n", url, evt.Challenge.Remaining(evt.Timestamp).Round(time.Second))
			case mint.EventAwardIssued:
				fmt.Printf("🏅 Awarded to %s (%s)\n", evt.Award.Recipient, evt.Award.Claim.DisplayName)
			case mint.EventRequestRejected:
				fmt.Printf("🚫 Rejected %s: %s\n", evt.Requester, evt.Code)
			case mint.EventError:
				fmt.Fprintf(os.Stderr, "session error: %s\n", evt.Err)
			case mint.EventStopped:
				fmt.Printf("👋 Session stopped; %d award(s) recorded\n", len(minter.Awards()))
			}
		}
		return <-done
	},
}

// nonceTTL applies the NONCE_EXPIRATION_SECONDS override when the flag
// was left at its default.
func nonceTTL() time.Duration {
	if adminTTL != 120*time.Second {
		return adminTTL
	}
	raw := strings.TrimSpace(os.Getenv("NONCE_EXPIRATION_SECONDS"))
	if raw == "" {
		return adminTTL
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		fmt.Fprintf(os.Stderr, "ignoring invalid NONCE_EXPIRATION_SECONDS=%q\n", raw)
		return adminTTL
	}
	return time.Duration(secs) * time.Second
}

func init() {
	rootCmd.AddCommand(adminCmd)

	adminCmd.Flags().StringSliceVar(&adminRelays, "relay", []string{"wss://relay.damus.io"}, "Relay URL (repeatable)")
	adminCmd.Flags().StringVar(&adminKeyFile, "key-file", "povmint.key", "Path to the issuer secret key")
	adminCmd.Flags().StringVar(&adminBadgeID, "badge-id", "", "Badge identifier (required)")
	adminCmd.Flags().StringVar(&adminBadgeName, "badge-name", "", "Badge display name")
	adminCmd.Flags().StringVar(&adminBadgeDesc, "badge-desc", "", "Badge description")
	adminCmd.Flags().StringVar(&adminBadgeImage, "badge-image", "", "Badge image URL")
	adminCmd.Flags().DurationVar(&adminTTL, "ttl", 120*time.Second, "Nonce validity window")
	adminCmd.Flags().DurationVar(&adminRefresh, "refresh", 2*time.Second, "Nonce rotation interval")
	adminCmd.Flags().StringVar(&adminBaseURL, "base-url", "https://povmint.local/claim", "Claim page base URL")
	adminCmd.Flags().StringVar(&adminRegistryFile, "registry-file", "povmint-awards.json", "Path to the claimant registry")
	_ = adminCmd.MarkFlagRequired("badge-id")
}
