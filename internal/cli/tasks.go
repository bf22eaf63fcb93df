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

func newTasksCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "List and change tasks"}
	cmd.AddCommand(
		newTasksHomeCommand(get),
		newTasksListCommand(get),
		newTasksShowCommand(get),
		newTasksCreateCommand(get),
		newTasksEditCommand(get),
		newTasksDeleteCommand(get),
		newTasksAssignCommand(get),
		newTasksUnassignCommand(get),
	)
	return cmd
}

type homeView struct {
	Today    []domain.TaskListItem `json:"today" yaml:"today"`
	Assigned []domain.TaskListItem `json:"assigned" yaml:"assigned"`
}

func (a *app) renderHome(tw *tabwriter.Writer, snap controller.HomeSnapshot) {
	fmt.Fprintln(tw, "Due today")
	a.out.taskRows(tw, snap.Today)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Assigned to me")
	a.out.taskRows(tw, snap.Assigned)
}

func newTasksHomeCommand(get func() *app) *cobra.Command {
	var orgID int64
	cmd := &cobra.Command{
		Use:   "home",
		Short: "Tasks due today and tasks assigned to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			home := controller.NewHome(a.api, a.broker, orgID, a.logger, nil)
			home.Mount(cmd.Context())
			home.Wait()
			snap := home.Snapshot()
			home.Unmount()
			if snap.State == controller.Error {
				return snap.Err
			}
			return a.out.print(homeView{Today: snap.Today, Assigned: snap.Assigned}, func(tw *tabwriter.Writer) {
				a.renderHome(tw, snap)
			})
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "limit to one organization")
	return cmd
}

type organizationTasksView struct {
	Organization *domain.OrganizationDetail `json:"organization" yaml:"organization"`
	Today        []domain.TaskListItem      `json:"today" yaml:"today"`
	All          []domain.TaskListItem      `json:"all" yaml:"all"`
}

func (a *app) renderOrganizationHome(tw *tabwriter.Writer, snap controller.OrganizationHomeSnapshot) {
	if snap.Organization != nil {
		fmt.Fprintf(tw, "%s\n\n", snap.Organization.Organization.Name)
	}
	fmt.Fprintln(tw, "Due today")
	a.out.taskRows(tw, snap.Today)
	fmt.Fprintln(tw)
	if snap.AssignedOnly {
		fmt.Fprintln(tw, "Assigned to me")
	} else {
		fmt.Fprintln(tw, "All tasks")
	}
	a.out.taskRows(tw, snap.All)
}

func newTasksListCommand(get func() *app) *cobra.Command {
	var (
		orgID    int64
		assigned bool
	)
	cmd := &cobra.Command{
		Use:   "list --org ID",
		Short: "An organization's tasks by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			view := controller.NewOrganizationHome(a.api, a.orgs, a.broker, orgID, a.logger, nil)
			view.SetAssignedOnly(assigned)
			view.Mount(cmd.Context())
			view.Wait()
			snap := view.Snapshot()
			view.Unmount()
			if snap.State == controller.Error {
				return snap.Err
			}
			out := organizationTasksView{Organization: snap.Organization, Today: snap.Today, All: snap.All}
			return a.out.print(out, func(tw *tabwriter.Writer) { a.renderOrganizationHome(tw, snap) })
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "organization id")
	cmd.Flags().BoolVar(&assigned, "assigned", false, "only tasks assigned to you")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

// loadTask mounts the task detail view once.
func loadTask(cmd *cobra.Command, a *app, id int64) (controller.TaskDetailSnapshot, error) {
	detail := controller.NewTaskDetail(a.api, a.api, a.broker, id, a.logger, nil)
	detail.Mount(cmd.Context())
	detail.Wait()
	snap := detail.Snapshot()
	detail.Unmount()
	if snap.Task == nil {
		if snap.Err != nil {
			return snap, snap.Err
		}
		return snap, fmt.Errorf("task %d not found", id)
	}
	return snap, nil
}

func newTasksShowCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task with its assignees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			snap, err := loadTask(cmd, a, id)
			if err != nil {
				return err
			}
			return a.out.print(snap.Task, func(tw *tabwriter.Writer) { a.out.taskDetail(tw, *snap.Task) })
		},
	}
}

func newTasksCreateCommand(get func() *app) *cobra.Command {
	var (
		form   orchestrator.TaskForm
		newOrg string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			loc, _ := a.cfg.Location()
			dialog := orchestrator.NewTaskCreate(a.api, a.orgs, a.api, loc, a.deps())
			dialog.DefaultOrganizationID = form.OrganizationID
			if err := dialog.Open(cmd.Context()); err != nil {
				return failed(dialog, err)
			}
			if newOrg != "" || dialog.NeedsOrganization() {
				if newOrg == "" {
					return fmt.Errorf("you belong to no organization; pass --new-org NAME to create one")
				}
				org, err := dialog.CreateInlineOrganization(cmd.Context(), newOrg)
				if err != nil {
					return failed(dialog, err)
				}
				form.OrganizationID = org.ID
			}
			if form.OrganizationID == 0 {
				form.OrganizationID = dialog.Form().OrganizationID
			}
			dialog.SetForm(form)
			task, err := dialog.Submit(cmd.Context())
			if err != nil {
				return failed(dialog, err)
			}
			return a.out.print(task, func(tw *tabwriter.Writer) { a.out.taskDetail(tw, task) })
		},
	}
	cmd.Flags().Int64Var(&form.OrganizationID, "org", 0, "organization id (default: your first organization)")
	cmd.Flags().StringVarP(&form.Title, "title", "t", "", "title")
	cmd.Flags().StringVarP(&form.Description, "description", "d", "", "description")
	cmd.Flags().StringVar(&form.DueDate, "due", "", "due date, YYYY-MM-DD or YYYY-MM-DDTHH:MM in your time zone")
	cmd.Flags().StringVar(&newOrg, "new-org", "", "create this organization and put the task in it")
	return cmd
}

func newTasksEditCommand(get func() *app) *cobra.Command {
	var (
		title, description, due string
		clearDue                bool
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's title, description or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			snap, err := loadTask(cmd, a, id)
			if err != nil {
				return err
			}
			loc, _ := a.cfg.Location()
			dialog := orchestrator.NewTaskEdit(a.api, loc, a.deps())
			dialog.Open(*snap.Task)
			form := dialog.Form()
			flags := cmd.Flags()
			if flags.Changed("title") {
				form.Title = title
			}
			if flags.Changed("description") {
				form.Description = description
			}
			if flags.Changed("due") {
				form.DueDate = due
			}
			if clearDue {
				form.DueDate = ""
			}
			dialog.SetForm(form)
			task, err := dialog.Submit(cmd.Context())
			if err != nil {
				return failed(dialog, err)
			}
			return a.out.print(task, func(tw *tabwriter.Writer) { a.out.taskDetail(tw, task) })
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	return cmd
}

func newTasksDeleteCommand(get func() *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task you created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			snap, err := loadTask(cmd, a, id)
			if err != nil {
				return err
			}
			if snap.Me == nil {
				return errNotLoggedIn
			}
			dialog := orchestrator.NewTaskDelete(a.api, a.deps())
			dialog.Confirm = func(prompt string) bool { return yes || a.confirm(prompt) }
			dialog.Open(*snap.Task, *snap.Me)
			if err := dialog.Submit(cmd.Context()); err != nil {
				if errors.Is(err, orchestrator.ErrCanceled) {
					a.out.line("Canceled")
					return nil
				}
				return failed(dialog, err)
			}
			a.out.line("Deleted task %d", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newTasksAssignCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign ID USER_ID...",
		Short: "Assign organization members to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			snap, err := loadTask(cmd, a, id)
			if err != nil {
				return err
			}
			dialog := orchestrator.NewAssignUsers(a.api, a.orgs, a.deps())
			if err := dialog.Open(cmd.Context(), *snap.Task); err != nil {
				return failed(dialog, err)
			}
			for _, arg := range args[1:] {
				uid, err := parseID(arg)
				if err != nil {
					return err
				}
				if !dialog.Toggle(uid) {
					return fmt.Errorf("user %d cannot be assigned: not a member or already assigned", uid)
				}
			}
			if err := dialog.Submit(cmd.Context()); err != nil {
				return failed(dialog, err)
			}
			a.out.line("Assigned %d user(s) to task %d", len(dialog.Selected()), id)
			return nil
		},
	}
}

func newTasksUnassignCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign ID USER_ID",
		Short: "Remove an assignee from a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			uid, err := parseID(args[1])
			if err != nil {
				return err
			}
			snap, err := loadTask(cmd, a, id)
			if err != nil {
				return err
			}
			dialog := orchestrator.NewUnassignUser(a.api, a.deps())
			dialog.Open(*snap.Task)
			if err := dialog.Submit(cmd.Context(), uid); err != nil {
				return failed(dialog, err)
			}
			a.out.line("Unassigned user %d from task %d", uid, id)
			return nil
		},
	}
}
