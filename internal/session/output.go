package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/go-mngr/mngr/internal/artifact"
	"github.com/go-mngr/mngr/internal/metrics"
	"github.com/go-mngr/mngr/internal/plugin"
	"github.com/go-mngr/mngr/internal/release"
	"github.com/go-mngr/mngr/pkg/registry"
	"github.com/jedib0t/go-pretty/v6/table"
)

const endOfList = "End of the plugins list."

type printer struct {
	w         io.Writer
	success   *color.Color
	failure   *color.Color
	notice    *color.Color
	highlight *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:         w,
		success:   color.New(color.FgGreen),
		failure:   color.New(color.FgRed),
		notice:    color.New(color.FgYellow),
		highlight: color.New(color.FgGreen, color.Bold),
	}
}

func (p *printer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(p.w, format, a...)
}

func (p *printer) Println(a ...any) {
	_, _ = fmt.Fprintln(p.w, a...)
}

func (p *printer) Successf(format string, a ...any) {
	_, _ = p.success.Fprintf(p.w, format+"\n", a...)
}

func (p *printer) Failuref(format string, a ...any) {
	_, _ = p.failure.Fprintf(p.w, format+"\n", a...)
}

func (p *printer) Noticef(format string, a ...any) {
	_, _ = p.notice.Fprintf(p.w, format+"\n", a...)
}

func (p *printer) Error(err error) {
	p.Failuref("%s", describeError(err))
}

func (p *printer) Help(m *mode) {
	if m.inputHelp != "" {
		p.Println(m.inputHelp)
	}
	for _, c := range m.commands {
		p.Printf("'%s' or '%s' - %s\n", p.highlight.Sprint(c.usage(c.name)), p.highlight.Sprint(c.usage(c.alias)), c.description)
	}
}

func (p *printer) Quota(q release.Quota) {
	p.Noticef("Remaining GitHub API calls: %s", q)
}

func (p *printer) Plugins(records []*registry.PluginRecord) {
	if len(records) == 0 {
		p.Println("No plugins registered.")
		p.Println(endOfList)
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.AppendHeader(table.Row{"Name", "Version", "Pre-release", "File", "Introduced", "Repository"})
	for _, r := range records {
		t.AppendRow(table.Row{r.Name, r.Version, r.PreRelease, r.FileName, r.IntroducedAt.UTC().Format(time.RFC3339), r.RepositoryURL})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
	p.Println(endOfList)
}

func (p *printer) Report(report *plugin.Report) {
	if len(report.Outcomes) == 0 {
		p.Noticef("No plugins to update.")
		return
	}
	var quota release.Quota
	for _, o := range report.Outcomes {
		switch o.Status {
		case plugin.StatusUpdated:
			p.Successf("%s: %s -> %s (%s)", o.Name, o.Previous.Version, o.Current.Version, o.Change)
		case plugin.StatusCurrent:
			p.Printf("%s: already current (%s)\n", o.Name, o.Current.Version)
		case plugin.StatusNoCandidate:
			p.Noticef("%s: no applicable release found", o.Name)
		case plugin.StatusSkipped:
			p.Noticef("%s: skipped, existing file kept", o.Name)
		default:
			p.Failuref("%s: %s", o.Name, describeError(o.Err))
		}
		if o.Quota.Known {
			quota = o.Quota
		}
	}
	p.Printf("Updated %d of %d plugins.\n", report.Count(plugin.StatusUpdated), len(report.Outcomes))
	if quota.Known {
		p.Quota(quota)
	}
}

func describeError(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, release.ErrUnauthorized):
		return fmt.Sprintf("%v. The GitHub token is invalid or expired, update github_token in the registry file or set MNGR_GITHUB_TOKEN.", err)
	case errors.Is(err, artifact.ErrPluginsDirMissing):
		return fmt.Sprintf("%v. Create the plugins directory and try again.", err)
	default:
		return err.Error()
	}
}

// PrintSummary writes the operation counters of the session as a table.
func PrintSummary(w io.Writer, rows []metrics.Row, downloadedBytes int64) {
	if len(rows) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Operation", "Outcome", "Count"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Operation, r.Outcome, r.Count})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
	})
	if downloadedBytes > 0 {
		t.AppendFooter(table.Row{"downloaded", "bytes", downloadedBytes})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
