package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newMeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Your own account",
	}

	cmd.AddCommand(newMeShowCmd())
	cmd.AddCommand(newMeRenameCmd())
	cmd.AddCommand(newMePasswdCmd())
	cmd.AddCommand(newMeDeleteCmd())

	return cmd
}

func newMeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile and stored data",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Profile
			if err := client.Get("/api/me", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newMeRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <new-username>",
		Short: "Change your username (allowed once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RenameResult
			err := client.Put("/api/me/username", map[string]string{
				"new_username": args[0],
			}, &result)
			if err != nil {
				return err
			}

			// The rename invalidates the old token
			if err := cfg.SaveToken(result.Token); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newMePasswdCmd() *cobra.Command {
	var current, newPassword string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := client.Put("/api/me/password", map[string]string{
				"current_password": current,
				"new_password":     newPassword,
			}, nil)
			if err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage("Password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}

func newMeDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete your account and all stored data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}

			err := client.Delete("/api/me", map[string]bool{"confirm": true}, nil)
			if err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage("Account deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")

	return cmd
}
