package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
)

type smtpOptions struct {
	settings models.SMTPSettings
	to       string
	askPass  bool
}

func newTestSMTPCmd(root *rootOptions) *cobra.Command {
	opts := &smtpOptions{}
	cmd := &cobra.Command{
		Use:   "test-smtp",
		Short: "Send the CyberKey test email through an SMTP server",
		Example: `  cyberkey-jobs test-smtp --host smtp.example.com --port 587 \
    --username me --from me@example.com --to you@example.com --password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.askPass {
				pw, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				opts.settings.Password = pw
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			svc := core.NewMailService(mailer.NewSMTPSender(0))
			if err := svc.SendTestEmail(ctx, opts.settings, opts.to); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test email sent to %s\n", opts.to)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.settings.Host, "host", "", "SMTP host")
	f.IntVar(&opts.settings.Port, "port", 587, "SMTP port")
	f.BoolVar(&opts.settings.Secure, "secure", false, "use implicit TLS (port 465 style)")
	f.StringVar(&opts.settings.Username, "username", "", "SMTP username")
	f.StringVar(&opts.settings.FromEmail, "from", "", "sender address")
	f.StringVar(&opts.to, "to", "", "recipient address")
	f.BoolVar(&opts.askPass, "password", false, "prompt for the SMTP password")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// readPassword prompts without echo on a terminal; otherwise it reads one line.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "SMTP password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		return string(pw), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
