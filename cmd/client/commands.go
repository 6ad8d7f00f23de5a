package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/user-directory/internal/api/dto"
	"github.com/spec-kit/user-directory/internal/domain"
)

func newRegisterCmd(a *app) *cobra.Command {
	req := dto.RegisterRequest{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				req.Password = readLines(cmd, "Password: ")[0]
			}
			user, err := a.service.Register(cmd.Context(), req)
			if err != nil {
				return fail(cmd, err)
			}
			cmd.Printf("registered %s (id %d), run login to sign in\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = readLines(cmd, "Password: ")[0]
			}
			state, err := a.service.Login(cmd.Context(), email, password)
			if err != nil {
				return fail(cmd, err)
			}
			cmd.Printf("signed in as %s\n", state.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.service.Profile(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			return printAccount(cmd, user, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.AddCommand(newProfileUpdateCmd(a))

	return cmd
}

func newProfileUpdateCmd(a *app) *cobra.Command {
	var name, email, phone string
	var changePassword bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields or the password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := dto.UpdateProfileRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("email") {
				req.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				req.Phone = &phone
			}
			if changePassword {
				secrets := readLines(cmd, "Current password: ", "New password: ")
				req.CurrentPassword, req.NewPassword = secrets[0], secrets[1]
			}

			user, err := a.service.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return fail(cmd, err)
			}
			return printAccount(cmd, user, false)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&phone, "phone", "", "new phone number")
	cmd.Flags().BoolVar(&changePassword, "password", false, "prompt for a password change")

	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the session token for a fresh one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.service.Refresh(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			cmd.Printf("token refreshed, valid until %s\n", res.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.service.Logout(cmd.Context())
			cmd.Println("signed out")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session without contacting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state := a.service.Status()
			if !state.Authenticated || state.User == nil {
				cmd.Println("not signed in")
				return nil
			}
			cmd.Printf("signed in as %s (id %d)\n", state.User.Email, state.User.ID)
			return nil
		},
	}
}

func printAccount(cmd *cobra.Command, user domain.PublicAccount, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(user, "", "  ")
		if err != nil {
			return fmt.Errorf("format account: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("id:      %d\n", user.ID)
	cmd.Printf("name:    %s\n", user.Name)
	cmd.Printf("email:   %s\n", user.Email)
	cmd.Printf("phone:   %s\n", user.Phone)
	cmd.Printf("created: %s\n", user.CreatedAt.Local().Format(time.RFC1123))
	return nil
}

// readLines prompts for one line of input per prompt. Input is echoed.
func readLines(cmd *cobra.Command, prompts ...string) []string {
	reader := bufio.NewReader(cmd.InOrStdin())
	lines := make([]string, len(prompts))
	for i, prompt := range prompts {
		cmd.Print(prompt)
		line, _ := reader.ReadString('\n')
		lines[i] = strings.TrimRight(line, "\r\n")
	}
	return lines
}
