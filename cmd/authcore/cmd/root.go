package cmd

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/cmd/authcore/internal/config"
	"github.com/MrEthical07/authcore/cmd/authcore/internal/format"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/credential/memory"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type app struct {
	configFile string
	output     string
	debug      bool
	noColor    bool

	file   config.File
	logger zerolog.Logger
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "authcore",
		Short: "Operator tooling for the authcore authentication core",
		Long: `authcore issues and inspects session tokens, provisions TOTP secrets,
generates recovery codes and checks engine configuration.

Settings come from built-in defaults, an optional YAML file (--config) and
AUTHCORE_* environment variables, in increasing precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (YAML)")
	flags.StringVarP(&a.output, "output", "o", "", "output format: table, json, json-compact, yaml")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newTokenCommand(a),
		newTOTPCommand(a),
		newRecoveryCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the CLI against os.Args.
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	if err != nil {
		format.Failure(root.ErrOrStderr(), "%v", err)
	}
	return err
}

func (a *app) init(cmd *cobra.Command) error {
	file, err := config.Load(viper.New(), a.configFile)
	if err != nil {
		return err
	}
	a.file = file

	if a.output == "" {
		a.output = file.Output.Format
	}
	if a.noColor || !file.Output.Colors {
		color.NoColor = true
	}

	level := zerolog.InfoLevel
	if a.debug {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.Kitchen,
		NoColor:    color.NoColor,
	}).Level(level).With().Timestamp().Logger()

	a.logger.Debug().Str("config", a.configFile).Str("output", a.output).Msg("configuration loaded")
	return nil
}

func (a *app) print(cmd *cobra.Command, data any) error {
	f, err := format.New(a.output, !color.NoColor)
	if err != nil {
		return err
	}
	return f.Format(cmd.OutOrStdout(), data)
}

// toolEngine builds an engine over an in-memory store for commands that work
// on a throwaway user. Without configured key material it signs with an
// ephemeral key, since such engines never hand tokens out.
func (a *app) toolEngine() (*authcore.Engine, *memory.Store, error) {
	cfg, err := a.file.Engine()
	if errors.Is(err, config.ErrKeyMaterial) {
		pub, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, nil, genErr
		}
		a.logger.Debug().Msg("no signing key configured, using an ephemeral key")
		cfg.Token.SigningMethod = "ed25519"
		cfg.Token.PrivateKey = priv
		cfg.Token.PublicKey = pub
		cfg.Token.VerifyKeys = nil
		cfg.Token.KeyID = ""
		err = nil
	}
	if err != nil {
		return nil, nil, err
	}

	store := memory.New()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithLogger(a.logger).
		Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, store, nil
}

// scratchUser stores a placeholder account labelled with email.
func scratchUser(ctx context.Context, store *memory.Store, email string) (credential.Record, error) {
	rec, err := store.Create(ctx, credential.Record{Email: email, EmailVerified: true})
	if err != nil {
		return credential.Record{}, fmt.Errorf("create scratch user: %w", err)
	}
	return rec, nil
}

// argOrStdin returns the single positional argument, or the first word on
// stdin when it is absent or "-".
func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	var s string
	if _, err := fmt.Fscan(cmd.InOrStdin(), &s); err != nil {
		return "", fmt.Errorf("read from stdin: %w", err)
	}
	return s, nil
}
