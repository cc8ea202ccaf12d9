package cmd

import (
	"fmt"
	"strconv"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/cmd/authcore/internal/config"
	"github.com/MrEthical07/authcore/cmd/authcore/internal/format"
	"github.com/MrEthical07/authcore/credential/memory"
	"github.com/spf13/cobra"
)

func newConfigCommand(a *app) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect, create and lint configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.print(cmd, a.file.Redacted())
		},
	}

	var path string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			format.Success(cmd.ErrOrStderr(), "wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "authcore.yaml", "destination file")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	lint := &cobra.Command{
		Use:   "lint",
		Short: "Validate the configuration and summarize its security posture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engineCfg, err := a.file.Engine()
			if err != nil {
				return err
			}
			engine, err := authcore.New().
				WithConfig(engineCfg).
				WithCredentialStore(memory.New()).
				WithLogger(a.logger).
				Build()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			defer engine.Close()

			report := engine.SecurityReport()
			for _, w := range lintWarnings(report) {
				format.Warning(cmd.ErrOrStderr(), "%s", w)
			}
			format.Success(cmd.ErrOrStderr(), "configuration valid")
			return a.print(cmd, reportKV(report))
		},
	}

	cfg.AddCommand(show, initCmd, lint)
	return cfg
}

func lintWarnings(r authcore.SecurityReport) []string {
	var out []string
	if !r.ProductionMode {
		out = append(out, "production_mode is off")
	}
	if !r.TOTPReplayProtection {
		out = append(out, "TOTP replay protection is disabled")
	}
	if r.SigningAlgorithm == "hs256" {
		out = append(out, "hs256 shares one secret between signers and verifiers")
	}
	if r.KeyID == "" {
		out = append(out, "token.key_id is empty; key rotation needs a kid")
	}
	if !r.AuditActive {
		out = append(out, "audit events are disabled")
	}
	return out
}

func reportKV(r authcore.SecurityReport) format.KV {
	b := strconv.FormatBool
	itoa := strconv.Itoa
	return format.KV{
		{Key: "production_mode", Value: b(r.ProductionMode)},
		{Key: "signing_algorithm", Value: r.SigningAlgorithm},
		{Key: "key_id", Value: r.KeyID},
		{Key: "rotation_keys", Value: itoa(r.RotationKeys)},
		{Key: "session_ttl", Value: r.SessionTTL.String()},
		{Key: "challenge_ttl", Value: r.ChallengeTTL.String()},
		{Key: "refresh_ttl", Value: r.RefreshTTL.String()},
		{Key: "remember_me_ttl", Value: r.RememberMeTTL.String()},
		{Key: "argon2_memory_kib", Value: strconv.FormatUint(uint64(r.Argon2.Memory), 10)},
		{Key: "argon2_time", Value: strconv.FormatUint(uint64(r.Argon2.Time), 10)},
		{Key: "argon2_parallelism", Value: itoa(int(r.Argon2.Parallelism))},
		{Key: "password_min_length", Value: itoa(r.PasswordPolicy.MinLength)},
		{Key: "password_min_classes", Value: itoa(r.PasswordPolicy.MinClasses)},
		{Key: "totp_digits", Value: itoa(r.TOTPDigits)},
		{Key: "totp_period", Value: itoa(r.TOTPPeriod)},
		{Key: "totp_skew", Value: itoa(r.TOTPSkew)},
		{Key: "totp_replay_protection", Value: b(r.TOTPReplayProtection)},
		{Key: "email_otp_ttl", Value: r.EmailOTPTTL.String()},
		{Key: "recovery_code_count", Value: itoa(r.RecoveryCodeCount)},
		{Key: "email_verification", Value: b(r.EmailVerificationActive)},
		{Key: "email_verification_required", Value: b(r.EmailVerificationGating)},
		{Key: "password_reset", Value: b(r.PasswordResetActive)},
		{Key: "audit", Value: b(r.AuditActive)},
	}
}
