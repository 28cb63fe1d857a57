package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pirate-baby/ATC/internal/checkauth"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"
	"github.com/pirate-baby/ATC/internal/store/postgres_store"
	"github.com/urfave/cli/v2"
)

var TokenCommand = &cli.Command{
	Name:  "token",
	Usage: "Manage service API tokens for the internal allocation surface",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "Create a new service token",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Usage:    "Name for the token",
					Required: true,
				},
				&cli.StringFlag{
					Name:    "user",
					Aliases: []string{"u"},
					Usage:   "Username to associate with the token",
				},
				&cli.StringFlag{
					Name:    "user-id",
					Usage:   "User ID to associate with the token (defaults to ATC_DEFAULT_USER_ID)",
					EnvVars: []string{"ATC_DEFAULT_USER_ID"},
				},
				&cli.IntFlag{
					Name:  "expires",
					Usage: "Days until the token expires (0 means never)",
				},
				dbUriFlag,
			},
			Action: func(ctx *cli.Context) error {
				if err := initCLIStore(); err != nil {
					return err
				}

				userID := ctx.String("user-id")
				if username := ctx.String("user"); username != "" {
					user, err := store.AppStore.GetUserByUsername(context.Background(), username)
					if err != nil {
						return fmt.Errorf("failed to look up user %q: %w", username, err)
					}
					userID = user.UserID
				}
				if userID == "" {
					return fmt.Errorf("a user is required (use --user, --user-id, or set ATC_DEFAULT_USER_ID)")
				}

				tokenBytes := make([]byte, 32)
				if _, err := rand.Read(tokenBytes); err != nil {
					return fmt.Errorf("failed to generate token: %w", err)
				}
				tokenString := hex.EncodeToString(tokenBytes)
				tokenHash := checkauth.HashAPIToken(tokenString)

				var expiresAt *time.Time
				if days := ctx.Int("expires"); days > 0 {
					t := time.Now().UTC().AddDate(0, 0, days)
					expiresAt = &t
				}

				apiToken := &models.APIToken{
					UserID:    userID,
					TokenHash: tokenHash,
					Name:      ctx.String("name"),
					ExpiresAt: expiresAt,
					IsActive:  true,
				}

				if err := store.AppStore.CreateAPIToken(context.Background(), apiToken); err != nil {
					return fmt.Errorf("failed to create token: %w", err)
				}

				fmt.Printf("Token created successfully!\n")
				fmt.Printf("Token ID: %s\n", apiToken.TokenID)
				fmt.Printf("Token: %s\n", tokenString)
				if expiresAt != nil {
					fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
				}
				fmt.Printf("\nSave this token - it cannot be retrieved again!\n")

				return nil
			},
		},
		{
			Name:  "list",
			Usage: "List service tokens for a user",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "user",
					Aliases:  []string{"u"},
					Usage:    "Username whose tokens to list",
					Required: true,
				},
				dbUriFlag,
			},
			Action: func(ctx *cli.Context) error {
				if err := initCLIStore(); err != nil {
					return err
				}

				user, err := store.AppStore.GetUserByUsername(context.Background(), ctx.String("user"))
				if err != nil {
					return fmt.Errorf("failed to look up user %q: %w", ctx.String("user"), err)
				}

				tokens, err := store.AppStore.GetAPITokensByUser(context.Background(), user.UserID)
				if err != nil {
					return fmt.Errorf("failed to list tokens: %w", err)
				}

				if len(tokens) == 0 {
					fmt.Println("No tokens found")
					return nil
				}

				for _, t := range tokens {
					state := "active"
					if !t.IsValid() {
						state = "inactive"
					}
					expires := "never"
					if t.ExpiresAt != nil {
						expires = t.ExpiresAt.Format(time.RFC3339)
					}
					lastUsed := "never"
					if t.LastUsedAt != nil {
						lastUsed = t.LastUsedAt.Format(time.RFC3339)
					}
					fmt.Printf("%s  %-20s  %s  expires=%s  last_used=%s\n", t.TokenID, t.Name, state, expires, lastUsed)
				}

				return nil
			},
		},
		{
			Name:  "revoke",
			Usage: "Revoke a service token by ID",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "token-id",
					Aliases:  []string{"t"},
					Usage:    "ID of the token to revoke",
					Required: true,
				},
				dbUriFlag,
			},
			Action: func(ctx *cli.Context) error {
				if err := initCLIStore(); err != nil {
					return err
				}

				tokenID := ctx.String("token-id")
				if err := store.AppStore.DeleteAPIToken(context.Background(), tokenID); err != nil {
					return fmt.Errorf("failed to revoke token: %w", err)
				}

				fmt.Printf("Token %s revoked\n", tokenID)
				return nil
			},
		},
	},
}

// initCLIStore wires the postgres store for one-shot CLI commands.
func initCLIStore() error {
	store.AppStore = postgres_store.PostgresStore
	if _, err := store.AppStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := store.AppStore.EnsureDefaultUser(); err != nil {
		return fmt.Errorf("failed to ensure default user: %w", err)
	}
	return nil
}
