package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/RipKord42/Hawk-TUI/internal/credential"
	"github.com/RipKord42/Hawk-TUI/internal/model"
)

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage configured accounts",
	}
	cmd.AddCommand(
		newAccountListCmd(a),
		newAccountAddCmd(a),
		newAccountRemoveCmd(a),
	)
	return cmd
}

func newAccountListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.config.Accounts) == 0 {
				fmt.Println("no accounts configured")
				return nil
			}
			for _, entry := range a.config.Accounts {
				marker := " "
				if entry.Name == a.config.DefaultAccount {
					marker = "*"
				}
				fmt.Printf("%s %-16s %-30s %s:%d\n",
					marker, entry.Name, entry.Email, entry.IMAPHost, entry.IMAPPort)
			}
			return nil
		},
	}
}

func newAccountAddCmd(a *app) *cobra.Command {
	var entry model.AccountConfig
	var password string
	var makeDefault bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account and store its password in the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if entry.Name == "" || entry.Email == "" || entry.IMAPHost == "" {
				return errors.New("--name, --email, and --imap-host are required")
			}
			for _, existing := range a.config.Accounts {
				if existing.Name == entry.Name {
					return fmt.Errorf("account %q already exists", entry.Name)
				}
			}
			if !validSecurity(entry.IMAPSecurity) || !validSecurity(entry.SMTPSecurity) {
				return errors.New(`security must be one of "tls", "starttls", or "none"`)
			}

			if password == "" {
				var err error
				password, err = promptLine(fmt.Sprintf("password for %s: ", entry.Email))
				if err != nil {
					return err
				}
			}
			if password == "" {
				return errors.New("a password is required")
			}

			account := entry.Account()
			if err := credential.Set(account.KeyringService(), account.Email, password); err != nil {
				return fmt.Errorf("storing credential: %w", err)
			}

			a.config.Accounts = append(a.config.Accounts, entry)
			if makeDefault || a.config.DefaultAccount == "" {
				a.config.DefaultAccount = entry.Name
			}
			if err := model.SaveConfig(a.configPath, a.config); err != nil {
				return err
			}
			fmt.Printf("account %q added\n", entry.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&entry.Name, "name", "", "short account name")
	cmd.Flags().StringVar(&entry.Email, "email", "", "login email address")
	cmd.Flags().StringVar(&entry.IMAPHost, "imap-host", "", "IMAP server hostname")
	cmd.Flags().IntVar(&entry.IMAPPort, "imap-port", 993, "IMAP server port")
	cmd.Flags().StringVar(&entry.IMAPSecurity, "imap-security", string(model.SecurityTLS), "IMAP transport security")
	cmd.Flags().StringVar(&entry.SMTPHost, "smtp-host", "", "SMTP server hostname")
	cmd.Flags().IntVar(&entry.SMTPPort, "smtp-port", 587, "SMTP server port")
	cmd.Flags().StringVar(&entry.SMTPSecurity, "smtp-security", string(model.SecurityStartTLS), "SMTP transport security")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "make this the default account")
	return cmd
}

func newAccountRemoveCmd(a *app) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove an account from the config and keyring",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			idx := slices.IndexFunc(a.config.Accounts, func(c model.AccountConfig) bool {
				return c.Name == name
			})
			if idx < 0 {
				return fmt.Errorf("account %q is not configured", name)
			}
			account := a.config.Accounts[idx].Account()

			if err := credential.Delete(account.KeyringService(), account.Email); err != nil {
				a.logger.WithError(err).Warn("could not remove keyring entry")
			}

			a.config.Accounts = slices.Delete(a.config.Accounts, idx, idx+1)
			if a.config.DefaultAccount == name {
				a.config.DefaultAccount = ""
				if len(a.config.Accounts) > 0 {
					a.config.DefaultAccount = a.config.Accounts[0].Name
				}
			}
			if err := model.SaveConfig(a.configPath, a.config); err != nil {
				return err
			}

			if purge {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				row, err := a.storedAccount(ctx, st, account)
				if err == nil {
					if err := st.DeleteAccount(ctx, row.ID); err != nil {
						return fmt.Errorf("purging local data: %w", err)
					}
				}
			}

			fmt.Printf("account %q removed\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "also delete the account's local messages")
	return cmd
}

func validSecurity(s string) bool {
	switch model.Security(s) {
	case model.SecurityTLS, model.SecurityStartTLS, model.SecurityNone:
		return true
	}
	return false
}
