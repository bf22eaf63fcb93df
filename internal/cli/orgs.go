package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/orchestrator"
)

func newOrgsCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{Use: "orgs", Aliases: []string{"organizations"}, Short: "Manage organizations"}
	cmd.AddCommand(
		newOrgsListCommand(get),
		newOrgsCreateCommand(get),
		newOrgsJoinCommand(get),
		newOrgsShowCommand(get),
		newOrgsRegenerateCommand(get),
	)
	return cmd
}

func newOrgsListCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			orgs, err := a.orgs.Organizations(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.print(orgs, func(tw *tabwriter.Writer) { a.out.organizationRows(tw, orgs) })
		},
	}
}

func newOrgsCreateCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create an organization you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			dialog := orchestrator.NewCreateOrganization(a.api, a.orgs, a.deps())
			dialog.Open()
			dialog.SetName(args[0])
			org, err := dialog.Submit(cmd.Context())
			if err != nil {
				return failed(dialog, err)
			}
			return printOrganization(a, org)
		},
	}
}

func newOrgsJoinCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Join an organization with an invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			dialog := orchestrator.NewJoinOrganization(a.api, a.orgs, a.deps())
			dialog.Open()
			dialog.SetInviteCode(args[0])
			org, err := dialog.Submit(cmd.Context())
			if err != nil {
				return failed(dialog, err)
			}
			return printOrganization(a, org)
		},
	}
}

func printOrganization(a *app, org domain.Organization) error {
	return a.out.print(org, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "ID\t%d\n", org.ID)
		fmt.Fprintf(tw, "NAME\t%s\n", org.Name)
		if org.InviteCode != "" {
			fmt.Fprintf(tw, "INVITE CODE\t%s\n", org.InviteCode)
		}
		if org.YourRole != "" {
			fmt.Fprintf(tw, "ROLE\t%s\n", org.YourRole)
		}
	})
}

func newOrgsShowCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an organization with its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dialog := orchestrator.NewOrganizationDetail(a.orgs, a.api, a.deps())
			if err := dialog.Open(cmd.Context(), id); err != nil {
				return failed(dialog, err)
			}
			detail := dialog.Detail()
			return a.out.print(detail, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s (id %d, you are %s)\n", detail.Organization.Name, detail.Organization.ID, detail.YourRole)
				if detail.Organization.InviteCode != "" {
					fmt.Fprintf(tw, "Invite code: %s\n", detail.Organization.InviteCode)
				}
				fmt.Fprintln(tw)
				a.out.memberRows(tw, detail.Members)
			})
		},
	}
}

func newOrgsRegenerateCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-code ID",
		Short: "Rotate the invite code (owners only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dialog := orchestrator.NewOrganizationDetail(a.orgs, a.api, a.deps())
			if err := dialog.Open(cmd.Context(), id); err != nil {
				return failed(dialog, err)
			}
			code, err := dialog.RegenerateInviteCode(cmd.Context())
			if err != nil {
				return failed(dialog, err)
			}
			a.out.line("New invite code: %s", code)
			return nil
		},
	}
}
