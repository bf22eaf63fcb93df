package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/yukikurage/task-management-front/domain"
)

// printer writes values in the configured output format. Table output is
// produced by the per-command table func.
type printer struct {
	w      io.Writer
	format string
	loc    *time.Location
}

func (p printer) print(v any, table func(tw *tabwriter.Writer)) error {
	switch p.format {
	case outputJSON:
		data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func (p printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p printer) taskRows(tw *tabwriter.Writer, items []domain.TaskListItem) {
	fmt.Fprintln(tw, "ID\tTITLE\tDUE\tORGANIZATION")
	for _, t := range items {
		org := ""
		if t.Organization != nil {
			org = t.Organization.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Title, domain.ShortDate(t.DueDate, p.loc), org)
	}
}

func (p printer) organizationRows(tw *tabwriter.Writer, orgs []domain.Organization) {
	fmt.Fprintln(tw, "ID\tNAME\tROLE")
	for _, o := range orgs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", o.ID, o.Name, o.YourRole)
	}
}

func (p printer) memberRows(tw *tabwriter.Writer, members []domain.OrganizationMember) {
	fmt.Fprintln(tw, "USER\tNAME\tROLE")
	for _, m := range members {
		fmt.Fprintf(tw, "%d\t@%s\t%s\n", m.UserID, m.Username(), m.Role)
	}
}

func (p printer) taskDetail(tw *tabwriter.Writer, t domain.Task) {
	fmt.Fprintf(tw, "ID\t%d\n", t.ID)
	fmt.Fprintf(tw, "TITLE\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "DESCRIPTION\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "DUE\t%s\n", domain.LongDate(t.DueDate, p.loc))
	if t.Organization != nil {
		fmt.Fprintf(tw, "ORGANIZATION\t%s\n", t.Organization.Name)
	}
	fmt.Fprintf(tw, "CREATOR\t%s\n", t.CreatorName())
	fmt.Fprintf(tw, "ASSIGNED\t%s\n", assigneeBadges(t))
}

func (p printer) draftRows(tw *tabwriter.Writer, drafts []domain.TaskDraft) {
	fmt.Fprintln(tw, "#\tTITLE\tDUE")
	for i, d := range drafts {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, d.Title, domain.ShortDate(d.DueDate, p.loc))
	}
}

func assigneeBadges(t domain.Task) string {
	badges := make([]string, 0, len(t.Assignments))
	for _, a := range t.Assignments {
		if a.User.Username != "" {
			badges = append(badges, "@"+a.User.Username)
		} else {
			badges = append(badges, "User #"+strconv.FormatInt(a.User.ID, 10))
		}
	}
	if len(badges) == 0 {
		return "-"
	}
	return strings.Join(badges, " ")
}
