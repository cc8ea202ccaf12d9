package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/cmd/authcore/internal/format"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/spf13/cobra"
)

func newTokenCommand(a *app) *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Issue, verify and key session tokens",
	}
	token.AddCommand(newTokenIssueCommand(a), newTokenVerifyCommand(a), newTokenKeygenCommand(a))
	return token
}

func newTokenIssueCommand(a *app) *cobra.Command {
	var (
		email, role, club, stage string
		amr                      []string
		ttl                      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue <subject>",
		Short: "Sign a session or challenge token for a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.file.Engine()
			if err != nil {
				return err
			}
			tokens, err := authcore.NewTokenManager(cfg.Token, nil)
			if err != nil {
				return err
			}

			st := jwt.Stage(stage)
			switch st {
			case jwt.StageSession:
				if ttl == 0 {
					ttl = cfg.Token.SessionTTL
				}
			case jwt.StageChallenge:
				if ttl == 0 {
					ttl = cfg.Token.ChallengeTTL
				}
			case jwt.StageRefresh:
				if ttl == 0 {
					ttl = cfg.Token.RefreshTTL
				}
				if ttl <= 0 {
					return errors.New("refresh tokens are disabled (token.refresh_ttl is 0)")
				}
			default:
				return fmt.Errorf("unknown stage %q (want session, challenge or refresh)", stage)
			}

			signed, err := tokens.Issue(args[0], jwt.Claims{
				Email:  email,
				Role:   role,
				ClubID: club,
				Stage:  st,
				AMR:    amr,
			}, ttl)
			if err != nil {
				return err
			}
			claims, err := tokens.Verify(signed)
			if err != nil {
				return fmt.Errorf("verify issued token: %w", err)
			}
			a.logger.Debug().Str("jti", claims.ID).Str("stage", string(st)).Msg("token issued")

			return a.print(cmd, append(format.KV{{Key: "token", Value: signed}}, claimsKV(claims)...))
		},
	}

	f := cmd.Flags()
	f.StringVar(&email, "email", "", "email claim")
	f.StringVar(&role, "role", "", "role claim")
	f.StringVar(&club, "club", "", "club_id claim")
	f.StringVar(&stage, "stage", string(jwt.StageSession), "token stage: session, challenge or refresh")
	f.StringSliceVar(&amr, "amr", []string{"pwd"}, "completed authentication methods")
	f.DurationVar(&ttl, "ttl", 0, "lifetime (defaults to the configured TTL for the stage)")
	return cmd
}

func newTokenVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [token|-]",
		Short: "Check a token's signature and expiry and print its claims",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := argOrStdin(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := a.file.Engine()
			if err != nil {
				return err
			}
			tokens, err := authcore.NewTokenManager(cfg.Token, nil)
			if err != nil {
				return err
			}

			claims, err := tokens.Verify(strings.TrimSpace(raw))
			var expired *jwt.ExpiredError
			if errors.As(err, &expired) && expired.Claims != nil {
				format.Warning(cmd.ErrOrStderr(), "token expired %s ago", time.Since(expired.ExpiresAt).Round(time.Second))
				if printErr := a.print(cmd, claimsKV(expired.Claims)); printErr != nil {
					return printErr
				}
				return err
			}
			if err != nil {
				return err
			}

			format.Success(cmd.ErrOrStderr(), "token valid")
			return a.print(cmd, claimsKV(claims))
		},
	}
}

func newTokenKeygenCommand(a *app) *cobra.Command {
	var dir string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Write a new ed25519 key pair as PEM files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			privPath := filepath.Join(dir, "authcore_ed25519.pem")
			pubPath := filepath.Join(dir, "authcore_ed25519.pub.pem")
			if !force {
				for _, p := range []string{privPath, pubPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s already exists (use --force to overwrite)", p)
					}
				}
			}

			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			privDER, err := x509.MarshalPKCS8PrivateKey(priv)
			if err != nil {
				return err
			}
			pubDER, err := x509.MarshalPKIXPublicKey(pub)
			if err != nil {
				return err
			}

			if err := os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644); err != nil {
				return err
			}

			a.logger.Info().Str("private", privPath).Str("public", pubPath).Msg("key pair written")
			return a.print(cmd, format.KV{
				{Key: "private_key_file", Value: privPath},
				{Key: "public_key_file", Value: pubPath},
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func claimsKV(c *jwt.Claims) format.KV {
	kv := format.KV{
		{Key: "subject", Value: c.Subject},
		{Key: "stage", Value: string(c.Stage)},
		{Key: "amr", Value: strings.Join(c.AMR, ",")},
	}
	if c.Email != "" {
		kv = append(kv, format.Pair{Key: "email", Value: c.Email})
	}
	if c.Role != "" {
		kv = append(kv, format.Pair{Key: "role", Value: c.Role})
	}
	if c.ClubID != "" {
		kv = append(kv, format.Pair{Key: "club_id", Value: c.ClubID})
	}
	if c.Issuer != "" {
		kv = append(kv, format.Pair{Key: "issuer", Value: c.Issuer})
	}
	if c.IssuedAt != nil {
		kv = append(kv, format.Pair{Key: "issued_at", Value: c.IssuedAt.UTC().Format(time.RFC3339)})
	}
	if c.ExpiresAt != nil {
		kv = append(kv, format.Pair{Key: "expires_at", Value: c.ExpiresAt.UTC().Format(time.RFC3339)})
	}
	return append(kv, format.Pair{Key: "jti", Value: c.ID})
}
