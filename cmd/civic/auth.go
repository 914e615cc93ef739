package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/screen"
)

func newAuthCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign up and manage the saved session",
	}
	cmd.AddCommand(
		newSignInCmd(v),
		newSignUpCmd(v),
		newFederatedCmd(v),
		newSignOutCmd(v),
		newWhoAmICmd(v),
	)
	return cmd
}

func newSignInCmd(v *viper.Viper) *cobra.Command {
	var email, password string
	var admin bool
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			form := screen.NewAuthForm(a.client, a.toaster)
			if admin {
				form = screen.NewAdminAuthForm(a.client, a.resolver, a.toaster)
			}
			if target, ok := form.Redirect(a.state(cmd.Context())); ok {
				fmt.Fprintf(a.out, "Already signed in, continue at %s\n", target)
				return nil
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			grant, err := form.SignIn(ctx, email, password)
			if err != nil {
				if grant != nil {
					_ = a.client.SignOut(ctx)
				}
				return formFailure(a, err)
			}
			if err := a.remember(grant); err != nil {
				return err
			}
			if admin {
				fmt.Fprintln(a.out, "Continue with `civic admin dashboard`.")
			}
			return a.home()
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&admin, "admin", false, "require the admin role")
	return cmd
}

func newSignUpCmd(v *viper.Viper) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			grant, err := screen.NewAuthForm(a.client, a.toaster).SignUp(ctx, email, password, name)
			if err != nil {
				return formFailure(a, err)
			}
			if err := a.remember(grant); err != nil {
				return err
			}
			return a.home()
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newFederatedCmd(v *viper.Viper) *cobra.Command {
	var idToken string
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google ID token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			grant, err := screen.NewAuthForm(a.client, a.toaster).SignInFederated(ctx, idToken)
			if err != nil {
				return formFailure(a, err)
			}
			if err := a.remember(grant); err != nil {
				return err
			}
			return a.home()
		},
	}
	cmd.Flags().StringVar(&idToken, "id-token", "", "ID token issued by Google")
	_ = cmd.MarkFlagRequired("id-token")
	return cmd
}

func newSignOutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			if err := a.client.SignOut(ctx); err != nil {
				a.log.Warn().Err(err).Msg("sign out")
			}
			if err := a.forget(); err != nil {
				return err
			}
			return a.home()
		},
	}
}

func newWhoAmICmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its role",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			s := a.state(cmd.Context())
			if s.Identity == nil {
				return a.home()
			}
			fmt.Fprintf(a.out, "%s <%s>\nprovider: %s\nrole: %s\n",
				screen.DisplayName(*s.Identity), s.Identity.Email, s.Identity.Provider, screen.RoleBadge(s.Role))
			return nil
		},
	}
}

// formFailure shows the form's error line and turns it into the exit error.
func formFailure(a *app, err error) error {
	var fe *screen.FormError
	if errors.As(err, &fe) {
		a.toaster.Error(fe.Message)
		if errors.Is(err, auth.ErrForbidden) {
			return errors.New("admin sign-in refused")
		}
		return errors.New(fe.Message)
	}
	return err
}
