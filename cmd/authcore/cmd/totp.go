package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/cmd/authcore/internal/format"
	"github.com/spf13/cobra"
)

const pngDataURLPrefix = "data:image/png;base64,"

func newTOTPCommand(a *app) *cobra.Command {
	totp := &cobra.Command{
		Use:   "totp",
		Short: "Provision and inspect authenticator-app secrets",
	}
	totp.AddCommand(
		newTOTPSecretCommand(a),
		newTOTPURICommand(a),
		newTOTPCodeCommand(a),
		newTOTPQRCommand(a),
	)
	return totp
}

func newTOTPSecretCommand(a *app) *cobra.Command {
	var account, qrOut string

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a secret with its provisioning URI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, store, err := a.toolEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			user, err := scratchUser(cmd.Context(), store, account)
			if err != nil {
				return err
			}
			enrollment, err := engine.BeginTOTPEnrollment(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			if qrOut != "" {
				if err := writeDataURL(qrOut, enrollment.QRCode); err != nil {
					return err
				}
				a.logger.Info().Str("file", qrOut).Msg("qr code written")
			}
			return a.print(cmd, format.KV{
				{Key: "account", Value: account},
				{Key: "secret", Value: enrollment.Secret},
				{Key: "uri", Value: enrollment.URI},
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "user@example.com", "account label shown in the authenticator")
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "also write the QR code PNG to this file")
	return cmd
}

func newTOTPURICommand(a *app) *cobra.Command {
	var secret, account, issuer string

	cmd := &cobra.Command{
		Use:   "uri",
		Short: "Build the otpauth:// URI for an existing secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := a.toolEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			_, err = fmt.Fprintln(cmd.OutOrStdout(), engine.BuildEnrollmentURI(secret, account, issuer))
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "base32 secret")
	cmd.Flags().StringVar(&account, "account", "", "account label")
	cmd.Flags().StringVar(&issuer, "issuer", "", "issuer label (defaults to totp.issuer)")
	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newTOTPCodeCommand(a *app) *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "code",
		Short: "Print the current code for a secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := a.toolEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			code, err := engine.CurrentTOTPCode(strings.ToUpper(strings.TrimSpace(secret)))
			if err != nil {
				return err
			}

			period := int64(engine.SecurityReport().TOTPPeriod)
			remaining := period - time.Now().Unix()%period
			return a.print(cmd, format.KV{
				{Key: "code", Value: code},
				{Key: "valid_for", Value: strconv.FormatInt(remaining, 10) + "s"},
			})
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "base32 secret")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newTOTPQRCommand(a *app) *cobra.Command {
	var out string
	var size int

	cmd := &cobra.Command{
		Use:   "qr <uri|->",
		Short: "Render a provisioning URI as a QR code",
		Long:  "Render a provisioning URI as a QR code PNG. Without --out the PNG is printed as a data URL.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := argOrStdin(cmd, args)
			if err != nil {
				return err
			}
			if size == 0 {
				size = a.file.TOTP.QRCodeSize
			}

			dataURL, err := authcore.QRCode(uri, size)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), dataURL)
				return err
			}
			if err := writeDataURL(out, dataURL); err != nil {
				return err
			}
			format.Success(cmd.ErrOrStderr(), "wrote %s", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "PNG output file")
	cmd.Flags().IntVar(&size, "size", 0, "image size in pixels (defaults to totp.qr_code_size)")
	return cmd
}

func writeDataURL(path, dataURL string) error {
	if !strings.HasPrefix(dataURL, pngDataURLPrefix) {
		return errors.New("unexpected qr code encoding")
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, pngDataURLPrefix))
	if err != nil {
		return fmt.Errorf("decode qr code: %w", err)
	}
	return os.WriteFile(path, png, 0o644)
}
