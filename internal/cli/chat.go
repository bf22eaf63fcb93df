package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yukikurage/task-management-front/chat"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/orchestrator"
)

// newDraftFlow wires the chat panel to the draft review dialog.
func (a *app) newDraftFlow(orgID int64) (*chat.Panel, *orchestrator.TaskDraftAccept) {
	accept := orchestrator.NewTaskDraftAccept(a.api, a.orgs, a.cfg.DraftWorkers, a.deps())
	accept.DefaultOrganizationID = orgID
	panel := chat.NewPanel(a.api, accept, a.cfg.Language(), a.logger)
	return panel, accept
}

type draftsView struct {
	Drafts  []domain.TaskDraft `json:"drafts" yaml:"drafts"`
	Created []domain.Task      `json:"created,omitempty" yaml:"created,omitempty"`
}

func newChatCommand(get func() *app) *cobra.Command {
	var (
		orgID int64
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "chat TEXT...",
		Short: "Turn free text into task drafts and optionally create them",
		Long: `chat sends the text to the generation endpoint and shows the drafts it
returns. Nothing is created until you accept the drafts, either at the prompt
or up front with --yes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			panel, accept := a.newDraftFlow(orgID)
			drafts, err := panel.Submit(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return failed(panel, err)
			}
			if len(drafts) == 0 {
				a.out.line("No drafts were generated")
				return nil
			}
			if orgID > 0 {
				accept.SelectOrganization(orgID)
			}

			if !yes {
				tw := tabwriter.NewWriter(a.errOut, 0, 4, 2, ' ', 0)
				a.out.draftRows(tw, drafts)
				_ = tw.Flush()
				if !a.confirm(fmt.Sprintf("Create %d task(s) in organization %d?", len(drafts), accept.OrganizationID())) {
					panel.Discard()
					return a.out.print(draftsView{Drafts: drafts}, func(tw *tabwriter.Writer) {
						fmt.Fprintln(tw, "Drafts discarded")
					})
				}
			}

			created, err := accept.Submit(cmd.Context())
			if err != nil {
				if len(created) > 0 {
					tw := tabwriter.NewWriter(a.errOut, 0, 4, 2, ' ', 0)
					a.out.taskRows(tw, itemsOf(created))
					_ = tw.Flush()
				}
				return failed(accept, err)
			}
			return a.out.print(draftsView{Drafts: drafts, Created: created}, func(tw *tabwriter.Writer) {
				a.out.taskRows(tw, itemsOf(created))
			})
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "organization to create the tasks in (default: your first)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "create the drafts without asking")
	return cmd
}

func itemsOf(tasks []domain.Task) []domain.TaskListItem {
	items := make([]domain.TaskListItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, t.ListItem())
	}
	return items
}
