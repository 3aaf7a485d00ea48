package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account registration and login",
	}

	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newCheckUsernameCmd())
	cmd.AddCommand(newCheckEmailCmd())

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create a new account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result AuthResult
			err := client.Post("/api/auth/register", map[string]string{
				"username": args[0],
				"email":    email,
				"password": password,
			}, &result)
			if err != nil {
				return err
			}

			if err := cfg.SaveToken(result.Token); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result AuthResult
			err := client.Post("/api/auth/login", map[string]string{
				"username": args[0],
				"password": password,
			}, &result)
			if err != nil {
				return err
			}

			if err := cfg.SaveToken(result.Token); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post("/api/auth/logout", nil, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage("Logged out")
			return nil
		},
	}
}

func newCheckUsernameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-username <username>",
		Short: "Check whether a username is free",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Availability
			if err := client.Get("/api/auth/check-username?username="+url.QueryEscape(args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newCheckEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-email <email>",
		Short: "Check whether an email is free",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Availability
			if err := client.Get("/api/auth/check-email?email="+url.QueryEscape(args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}
