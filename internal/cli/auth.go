package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yukikurage/task-management-front/controller"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/orchestrator"
)

func newAuthCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Sign in, sign up and inspect the session"}
	cmd.AddCommand(newLoginCommand(get), newSignupCommand(get), newLogoutCommand(get), newWhoamiCommand(get))
	return cmd
}

// credentials reads the password from stdin when the flag was not given.
func credentials(a *app, username, password string) (string, string, error) {
	var err error
	if username == "" {
		if username, err = a.prompt("Username: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = a.prompt("Password: "); err != nil {
			return "", "", err
		}
	}
	return username, password, nil
}

func newLoginCommand(get func() *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			u, p, err := credentials(a, username, password)
			if err != nil {
				return err
			}
			login := orchestrator.NewLogin(a.api, a.deps())
			login.Open()
			login.SetCredentials(u, p)
			user, err := login.Submit(cmd.Context())
			if err != nil {
				return failed(login, err)
			}
			a.signedIn(user)
			a.out.line("Logged in as @%s", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newSignupCommand(get func() *app) *cobra.Command {
	var username, password, confirm string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			prompted := password == ""
			u, p, err := credentials(a, username, password)
			if err != nil {
				return err
			}
			if confirm == "" {
				if prompted {
					if confirm, err = a.prompt("Confirm password: "); err != nil {
						return err
					}
				} else {
					confirm = p
				}
			}

			signup := orchestrator.NewSignup(a.api, a.deps())
			var active bool
			signup.OnSignedUp = func(_ domain.User, sessionActive bool) { active = sessionActive }
			signup.Open()
			signup.SetCredentials(u, p, confirm)
			user, err := signup.Submit(cmd.Context())
			if err != nil {
				return failed(signup, err)
			}
			if !active {
				a.out.line("Signed up as @%s; run `tasker auth login` to continue", user.Username)
				return nil
			}
			a.signedIn(user)
			a.out.line("Signed up and logged in as @%s", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&confirm, "confirm", "", "password confirmation (defaults to --password)")
	return cmd
}

func newLogoutCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			sidebar := controller.NewSidebar(a.api, a.orgs, a.broker, a.logger, nil)
			err := sidebar.Logout(cmd.Context())
			a.signedOut()
			if err != nil {
				a.logger.WithError(err).Debug("cli: server-side logout failed")
			}
			a.out.line("Logged out")
			return nil
		},
	}
}

type whoamiView struct {
	User          domain.User           `json:"user" yaml:"user"`
	Organizations []domain.Organization `json:"organizations" yaml:"organizations"`
}

// loadSidebar mounts the sidebar once and returns what it loaded. A failed
// identity or organization fetch means there is no usable session.
func loadSidebar(cmd *cobra.Command, a *app) (controller.SidebarSnapshot, error) {
	var unauthorized error
	sidebar := controller.NewSidebar(a.api, a.orgs, a.broker, a.logger, nil)
	sidebar.OnUnauthorized = func(err error) { unauthorized = err }
	sidebar.Mount(cmd.Context())
	sidebar.Wait()
	snap := sidebar.Snapshot()
	sidebar.Unmount()
	if unauthorized != nil || snap.User == nil {
		return snap, errors.Join(errNotLoggedIn, unauthorized)
	}
	return snap, nil
}

func newWhoamiCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and their organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			snap, err := loadSidebar(cmd, a)
			if err != nil {
				return err
			}
			a.signedIn(*snap.User)
			view := whoamiView{User: *snap.User, Organizations: snap.Organizations}
			return a.out.print(view, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "@%s (id %d)\n\n", view.User.Username, view.User.ID)
				a.out.organizationRows(tw, view.Organizations)
			})
		},
	}
}
