package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/handlers"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// importEntry is one row of the bulk import file. A Token value of "-" means
// prompt for the secret interactively so it never lands in a file on disk.
type importEntry struct {
	Username string `yaml:"username"`
	Name     string `yaml:"name"`
	Token    string `yaml:"token"`
}

var ImportCommand = &cli.Command{
	Name:  "import",
	Usage: "Bulk-import contributor subscription tokens from a YAML file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "YAML file with a list of {username, name, token} entries",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Validate and report without writing anything",
		},
		dbUriFlag,
	},
	Action: func(ctx *cli.Context) error {
		data, err := os.ReadFile(ctx.String("file"))
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		var entries []importEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse import file: %w", err)
		}
		if len(entries) == 0 {
			return fmt.Errorf("import file contains no entries")
		}

		if err := initCLIStore(); err != nil {
			return err
		}

		cipher, err := buildImportCipher()
		if err != nil {
			return err
		}

		dryRun := ctx.Bool("dry-run")
		imported, skipped, failed := 0, 0, 0

		for i, entry := range entries {
			label := entry.Username
			if label == "" {
				label = fmt.Sprintf("entry %d", i+1)
			}

			if entry.Username == "" || entry.Name == "" {
				fmt.Printf("SKIP %s: username and name are required\n", label)
				failed++
				continue
			}

			secret := entry.Token
			if secret == "-" {
				secret, err = promptForSecret(entry.Username)
				if err != nil {
					return err
				}
			}

			credential, problem := handlers.ValidateClaudeTokenFormat(secret)
			if problem != "" {
				fmt.Printf("SKIP %s: %s\n", label, problem)
				failed++
				continue
			}
			crypto.RegisterSecret(credential)

			user, err := store.AppStore.GetUserByUsername(context.Background(), entry.Username)
			if err != nil {
				fmt.Printf("SKIP %s: user not found\n", label)
				failed++
				continue
			}

			if _, err := store.AppStore.GetClaudeTokenByOwner(context.Background(), user.UserID); err == nil {
				fmt.Printf("SKIP %s: user already has a pool token\n", label)
				skipped++
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("failed to check existing token for %s: %w", label, err)
			}

			if dryRun {
				fmt.Printf("OK   %s: would import %q\n", label, entry.Name)
				imported++
				continue
			}

			encrypted, err := cipher.EncryptToken(credential)
			if err != nil {
				return fmt.Errorf("failed to encrypt token for %s: %w", label, err)
			}

			token := &models.ClaudeToken{
				UserID:         user.UserID,
				Name:           entry.Name,
				EncryptedToken: encrypted,
				Status:         models.ClaudeTokenStatusActive,
			}
			if err := store.AppStore.CreateClaudeToken(context.Background(), token); err != nil {
				fmt.Printf("SKIP %s: %v\n", label, err)
				failed++
				continue
			}

			fmt.Printf("OK   %s: imported %q\n", label, entry.Name)
			imported++
		}

		verb := "imported"
		if dryRun {
			verb = "would import"
		}
		fmt.Printf("\n%s %d, skipped %d, failed %d\n", verb, imported, skipped, failed)
		if failed > 0 {
			return fmt.Errorf("%d entries failed", failed)
		}
		return nil
	},
}

func buildImportCipher() (*crypto.TokenCipher, error) {
	if config.EncryptionPassphrase != "" {
		return crypto.NewTokenCipherFromPassphrase(config.EncryptionPassphrase)
	}
	if config.JwtSecret == "" {
		return nil, fmt.Errorf("ATC_JWT_SECRET or ATC_ENCRYPTION_PASSPHRASE must be set to encrypt imported tokens")
	}
	return crypto.NewTokenCipher(config.JwtSecret)
}

func promptForSecret(username string) (string, error) {
	fmt.Printf("Token for %s: ", username)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read token for %s: %w", username, err)
	}
	return strings.TrimSpace(string(raw)), nil
}
