package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yukikurage/task-management-front/chat"
	"github.com/yukikurage/task-management-front/controller"
	"github.com/yukikurage/task-management-front/orchestrator"
	"github.com/yukikurage/task-management-front/overlay"
	"github.com/yukikurage/task-management-front/refresh"
)

const watchHelp = `commands:
  /new TITLE add a task to the organization shown (with --org)
  /accept    create the pending drafts
  /discard   drop the pending drafts
  /refresh   reload everything
  /quit      leave
anything else is sent to the chat panel`

var errSessionEnded = errors.New("session ended; run `tasker auth login`")

// watcher is the interactive shell: the sidebar and one task view stay
// mounted and are redrawn whenever they change.
type watcher struct {
	a      *app
	orgID  int64
	cancel context.CancelCauseFunc

	sidebar *controller.Sidebar
	home    *controller.Home
	orgHome *controller.OrganizationHome
	panel   *chat.Panel
	accept  *orchestrator.TaskDraftAccept
	create  *orchestrator.TaskCreate
	detach  []func()

	mu sync.Mutex
}

func newWatcher(a *app, orgID int64, cancel context.CancelCauseFunc) *watcher {
	w := &watcher{a: a, orgID: orgID, cancel: cancel}
	redraw := func() { w.render() }

	w.sidebar = controller.NewSidebar(a.api, a.orgs, a.broker, a.logger, func(controller.SidebarSnapshot) { redraw() })
	w.sidebar.OnUnauthorized = func(err error) {
		w.cancel(errors.Join(errSessionEnded, err))
	}
	if orgID > 0 {
		w.orgHome = controller.NewOrganizationHome(a.api, a.orgs, a.broker, orgID, a.logger, func(controller.OrganizationHomeSnapshot) { redraw() })
		loc, _ := a.cfg.Location()
		w.create = orchestrator.NewTaskCreate(a.api, a.orgs, a.api, loc, a.deps())
		w.create.DefaultOrganizationID = orgID
	} else {
		w.home = controller.NewHome(a.api, a.broker, 0, a.logger, func(controller.HomeSnapshot) { redraw() })
	}
	w.panel, w.accept = a.newDraftFlow(orgID)
	a.overlay.OnChange(func(string) { redraw() })
	return w
}

func (w *watcher) mount(ctx context.Context) {
	w.a.overlay.Mount(overlay.DefaultSlot)
	if w.create != nil {
		w.detach = append(w.detach, w.a.overlay.Attach(w.newTaskPortal()))
	}
	w.detach = append(w.detach, w.a.overlay.Attach(w.panel.Portal()))
	w.sidebar.Mount(ctx)
	if w.orgHome != nil {
		w.orgHome.Mount(ctx)
	} else {
		w.home.Mount(ctx)
	}
}

func (w *watcher) unmount() {
	w.sidebar.Unmount()
	if w.orgHome != nil {
		w.orgHome.Unmount()
	} else {
		w.home.Unmount()
	}
	for _, detach := range w.detach {
		detach()
	}
	w.detach = nil
	w.a.overlay.Unmount(overlay.DefaultSlot)
}

// newTaskPortal advertises the new-task dialog next to the chat panel.
func (w *watcher) newTaskPortal() overlay.Portal {
	return overlay.Portal{
		SlotID: overlay.DefaultSlot,
		Render: func() string {
			if w.create.Submitting() {
				return "[new] creating..."
			}
			return "[new] /new TITLE to add a task"
		},
	}
}

// newTask opens the new-task dialog on the shown organization and submits
// title through it.
func (w *watcher) newTask(ctx context.Context, title string) {
	if w.create == nil {
		fmt.Fprintln(w.a.errOut, "/new needs watch --org ID")
		return
	}
	if err := w.create.Open(ctx); err != nil {
		fmt.Fprintln(w.a.errOut, failed(w.create, err))
		w.create.Close()
		return
	}
	form := w.create.Form()
	form.Title = title
	w.create.SetForm(form)
	task, err := w.create.Submit(ctx)
	if err != nil {
		fmt.Fprintln(w.a.errOut, failed(w.create, err))
		w.create.Close()
		return
	}
	fmt.Fprintf(w.a.errOut, "created task %d\n", task.ID)
}

// wait blocks until every load started so far has been applied.
func (w *watcher) wait() {
	w.sidebar.Wait()
	if w.orgHome != nil {
		w.orgHome.Wait()
	} else {
		w.home.Wait()
	}
}

// render draws one frame to stdout.
func (w *watcher) render() {
	w.mu.Lock()
	defer w.mu.Unlock()
	tw := tabwriter.NewWriter(w.a.out.w, 0, 4, 2, ' ', 0)
	w.frame(tw)
	_ = tw.Flush()
}

func (w *watcher) frame(tw *tabwriter.Writer) {
	side := w.sidebar.Snapshot()
	fmt.Fprintln(tw, "----")
	if side.User != nil {
		fmt.Fprintf(tw, "@%s", side.User.Username)
		for _, o := range side.Organizations {
			fmt.Fprintf(tw, "  [%d] %s", o.ID, o.Name)
		}
		fmt.Fprintln(tw)
	} else {
		fmt.Fprintf(tw, "(%s)\n", side.State)
	}
	fmt.Fprintln(tw)

	if w.orgHome != nil {
		snap := w.orgHome.Snapshot()
		if snap.State == controller.Error {
			fmt.Fprintf(tw, "error: %v\n", snap.Err)
		} else {
			w.a.renderOrganizationHome(tw, snap)
		}
	} else {
		snap := w.home.Snapshot()
		if snap.State == controller.Error {
			fmt.Fprintf(tw, "error: %v\n", snap.Err)
		} else {
			w.a.renderHome(tw, snap)
		}
	}

	slot := w.a.overlay.Render(overlay.DefaultSlot)
	if len(slot) > 0 {
		fmt.Fprintln(tw)
	}
	for _, line := range slot {
		fmt.Fprintln(tw, line)
	}
	if msg := w.panel.Err(); msg != "" {
		fmt.Fprintln(tw, msg)
	}
	if msg := w.accept.Err(); msg != "" {
		fmt.Fprintln(tw, msg)
	}
}

// handleLine runs one line of input and reports whether the shell should
// exit.
func (w *watcher) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "/quit", "/q":
		return true
	case "/help", "?":
		fmt.Fprintln(w.a.errOut, watchHelp)
	case "/refresh":
		w.a.orgs.InvalidateAll(ctx)
		w.a.broker.Publish(refresh.TopicTasks, refresh.TopicOrganizations)
	case "/discard":
		w.panel.Discard()
		w.render()
	case "/accept":
		created, err := w.accept.Submit(ctx)
		if err != nil {
			fmt.Fprintln(w.a.errOut, failed(w.accept, err))
		}
		if len(created) > 0 {
			fmt.Fprintf(w.a.errOut, "created %d task(s)\n", len(created))
		}
		if err == nil {
			w.panel.Discard()
		}
	default:
		if title, ok := strings.CutPrefix(line, "/new"); ok && (title == "" || title[0] == ' ') {
			w.newTask(ctx, strings.TrimSpace(title))
			return false
		}
		drafts, err := w.panel.Submit(ctx, line)
		switch {
		case errors.Is(err, chat.ErrBusy):
			fmt.Fprintln(w.a.errOut, "still generating")
		case err != nil:
			fmt.Fprintln(w.a.errOut, failed(w.panel, err))
		case len(drafts) == 0:
			fmt.Fprintln(w.a.errOut, "no drafts")
		default:
			tw := tabwriter.NewWriter(w.a.errOut, 0, 4, 2, ' ', 0)
			w.a.out.draftRows(tw, drafts)
			_ = tw.Flush()
			fmt.Fprintln(w.a.errOut, "/accept to create them, /discard to drop them")
		}
		w.render()
	}
	return false
}

// run reads input lines until /quit, end of input or cancellation.
func (w *watcher) run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := w.a.in.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
				return cause
			}
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line := <-lines:
			if w.handleLine(ctx, line) {
				return nil
			}
		}
	}
}

func newWatchCommand(get func() *app) *cobra.Command {
	var orgID int64
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep your tasks on screen and redraw them as they change",
		Long: `watch mounts the sidebar and your task list and redraws them whenever a
change is signalled, locally or (with redis_url set) from another tasker
process. Lines you type are sent to the chat panel.

` + watchHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			ctx, cancel := context.WithCancelCause(cmd.Context())
			defer cancel(nil)

			if a.bridge != nil {
				go a.bridge.Run(ctx)
			}
			w := newWatcher(a, orgID, cancel)
			w.mount(ctx)
			defer w.unmount()
			return w.run(ctx)
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "show one organization instead of the home view")
	return cmd
}
