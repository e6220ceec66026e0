package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/distsync/pkg/cleaner"
	"github.com/arthur-debert/distsync/pkg/config"
	"github.com/arthur-debert/distsync/pkg/distribution"
	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/status"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
)

// Plan bucket labels used in tables and JSON.
const (
	ActionInstall   = "install"
	ActionUpdate    = "update"
	ActionRemove    = "remove"
	ActionUnchanged = "unchanged"
)

// Renderer writes sync results, plans and cleanup reports to a writer.
type Renderer struct {
	w      io.Writer
	format Format
	styles Styles
}

// NewRenderer creates a renderer for w. FormatAuto must be resolved by the
// caller with DetectFormat; it is treated as FormatText here.
func NewRenderer(w io.Writer, format Format) *Renderer {
	if format == FormatAuto {
		format = FormatText
	}
	lr := lipgloss.NewRenderer(w)
	if format != FormatTerminal {
		lr.SetColorProfile(termenv.Ascii)
	}
	logger := logging.GetLogger("output.Renderer")
	logger.Debug().
		Str("format", format.String()).
		Msg("Created renderer")
	return &Renderer{w: w, format: format, styles: NewStyles(lr)}
}

// Format returns the resolved output format.
func (r *Renderer) Format() Format {
	return r.format
}

func (r *Renderer) paint(style lipgloss.Style, s string) string {
	if r.format != FormatTerminal {
		return s
	}
	return style.Render(s)
}

// RenderResults writes one section per environment pass.
func (r *Renderer) RenderResults(results []*distribution.SyncResult) error {
	if r.format == FormatJSON {
		views := make([]resultView, 0, len(results))
		for _, res := range results {
			views = append(views, newResultView(res))
		}
		return r.writeJSON(views)
	}

	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		section, err := r.result(res)
		if err != nil {
			return err
		}
		b.WriteString(section)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// RenderCleanup writes a standalone cleanup report.
func (r *Renderer) RenderCleanup(report *cleaner.Report) error {
	if r.format == FormatJSON {
		return r.writeJSON(newCleanupView(report))
	}
	_, err := io.WriteString(r.w, r.cleanup(report))
	return err
}

// RenderStatus writes one artifact table per environment.
func (r *Renderer) RenderStatus(reports []*status.Report) error {
	if r.format == FormatJSON {
		views := make([]statusView, 0, len(reports))
		for _, rep := range reports {
			views = append(views, newStatusView(rep))
		}
		return r.writeJSON(views)
	}

	var b strings.Builder
	for i, rep := range reports {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.paint(r.styles.Title, rep.Environment) + " " + r.paint(r.styles.Path, rep.Root) + "\n")
		if !rep.Synchronized {
			b.WriteString(r.paint(r.styles.Warning, "never synchronized") + "\n")
			continue
		}
		b.WriteString(r.paint(r.styles.Muted, fmt.Sprintf("%s mode, last synchronized %s",
			rep.Mode, rep.UpdatedAt.Local().Format("2006-01-02 15:04:05"))) + "\n")
		if len(rep.Artifacts) == 0 {
			b.WriteString(r.paint(r.styles.Muted, "no artifacts deployed") + "\n")
			continue
		}
		data := pterm.TableData{{"STATE", "ARTIFACT", "TARGET", "DETAIL"}}
		for _, a := range rep.Artifacts {
			data = append(data, []string{
				r.paint(r.stateStyle(a.State), string(a.State)),
				a.Key.String(),
				a.Target,
				a.Message,
			})
		}
		table, err := r.table(data)
		if err != nil {
			return err
		}
		b.WriteString(table)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) stateStyle(s status.State) lipgloss.Style {
	switch s {
	case status.StateOK:
		return r.styles.Success
	case status.StateOutdated, status.StateModified:
		return r.styles.Warning
	case status.StateMissing, status.StateConflict, status.StateError:
		return r.styles.Error
	default:
		return r.styles.Muted
	}
}

// RenderConfig writes the loaded configuration's environments.
func (r *Renderer) RenderConfig(cfg *config.Config) error {
	if r.format == FormatJSON {
		return r.writeJSON(newConfigView(cfg))
	}

	var b strings.Builder
	source := cfg.Path
	if source == "" {
		source = "built-in defaults"
	}
	b.WriteString(r.paint(r.styles.Title, "configuration") + " " + r.paint(r.styles.Path, source) + "\n")
	b.WriteString(fmt.Sprintf("mode %s, output %s, parallelism %d, elevation %t\n",
		cfg.Mode, cfg.OutputDir, cfg.Sync.Parallelism, cfg.Elevation.Enabled))

	names := cfg.EnvironmentNames()
	if len(names) == 0 {
		b.WriteString(r.paint(r.styles.Muted, "no environments configured") + "\n")
		_, err := io.WriteString(r.w, b.String())
		return err
	}
	data := pterm.TableData{{"ENVIRONMENT", "ROOT", "MODE", "MANIFEST", "RUNTIME PATHS"}}
	for _, name := range names {
		e := cfg.Environments[name]
		mode := e.Mode
		if mode == "" {
			mode = cfg.Mode
		}
		data = append(data, []string{name, e.Root, mode, e.Manifest, strings.Join(e.RuntimePaths, " ")})
	}
	table, err := r.table(data)
	if err != nil {
		return err
	}
	b.WriteString(table)
	_, err = io.WriteString(r.w, b.String())
	return err
}

// RenderError writes err, prefixed by its code when it carries one.
func (r *Renderer) RenderError(err error) error {
	if err == nil {
		return nil
	}
	if r.format == FormatJSON {
		return r.writeJSON(newErrorView(err))
	}
	line := r.paint(r.styles.Error, "ERROR") + " "
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		line += r.paint(r.styles.Error, string(code)) + " "
	}
	line += err.Error()
	if reason := errors.Reason(err); reason != "" {
		line += r.paint(r.styles.Muted, " (reason: "+reason+")")
	}
	_, werr := fmt.Fprintln(r.w, line)
	return werr
}

func (r *Renderer) result(res *distribution.SyncResult) (string, error) {
	var b strings.Builder
	title := res.Environment
	if res.DryRun {
		title += " (dry run)"
	}
	b.WriteString(r.paint(r.styles.Title, title))
	b.WriteString(" " + r.paint(r.styles.Path, res.Root) + "\n")

	if res.Plan != nil {
		table, err := r.planTable(res.Plan)
		if err != nil {
			return "", err
		}
		b.WriteString(table)
		s := res.Plan.Summary()
		b.WriteString(r.paint(r.styles.Muted, fmt.Sprintf(
			"%d to install, %d to update, %d to remove, %d unchanged",
			s.Install, s.Update, s.Remove, s.Unchanged)) + "\n")
	}

	if !res.DryRun && res.Err == nil {
		b.WriteString(fmt.Sprintf("%s bytes written in %d chunks, %d operations",
			r.paint(r.styles.Success, fmt.Sprint(res.Written.BytesWritten)),
			res.Written.ChunksWritten, res.Written.Operations))
		if res.Written.Elevated {
			b.WriteString(", " + r.paint(r.styles.Warning, "elevated links"))
		}
		b.WriteString("\n")
		if res.LaunchWritten.BytesWritten > 0 {
			b.WriteString(fmt.Sprintf("%d launch file bytes written\n", res.LaunchWritten.BytesWritten))
		}
		for _, f := range res.LaunchFiles {
			b.WriteString("  launch " + r.paint(r.styles.Path, f) + "\n")
		}
		if res.Cleanup != nil && len(res.Cleanup.Deleted) > 0 {
			b.WriteString(r.cleanup(res.Cleanup))
		}
	}

	if res.Err != nil {
		b.WriteString(r.paint(r.styles.Error, "failed: ") + res.Err.Error() + "\n")
	}
	return b.String(), nil
}

func (r *Renderer) planTable(plan *types.ExecutionPlan) (string, error) {
	data := pterm.TableData{{"ACTION", "ARTIFACT", "TARGET"}}
	add := func(action string, list []types.ArtifactDescriptor) {
		for _, d := range list {
			data = append(data, []string{
				r.paint(r.styles.actionStyle(action), action),
				d.Key.String(),
				d.RelativeTarget(),
			})
		}
	}
	add(ActionInstall, plan.Install)
	add(ActionUpdate, plan.Update)
	add(ActionRemove, plan.Remove)
	if len(data) == 1 {
		return r.paint(r.styles.Muted, "nothing to do") + "\n", nil
	}
	return r.table(data)
}

func (r *Renderer) table(data pterm.TableData) (string, error) {
	table := pterm.DefaultTable.WithHasHeader().WithData(data)
	if r.format != FormatTerminal {
		plain := pterm.NewStyle()
		table = table.WithHeaderStyle(plain).WithStyle(plain).WithSeparatorStyle(plain)
	}
	out, err := table.Srender()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to render table")
	}
	return out + "\n", nil
}

func (r *Renderer) cleanup(report *cleaner.Report) string {
	var b strings.Builder
	verb := "deleted"
	if report.DryRun {
		verb = "would delete"
	}
	if len(report.Deleted) == 0 {
		b.WriteString(r.paint(r.styles.Muted, "nothing to clean in "+report.Root) + "\n")
		return b.String()
	}
	for _, e := range report.Deleted {
		b.WriteString("  " + r.paint(r.styles.Warning, verb) + " " + r.paint(r.styles.Path, e.Rel) + "\n")
	}
	return b.String()
}

func (r *Renderer) writeJSON(v interface{}) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode output")
	}
	return nil
}

type planView struct {
	Install   []string `json:"install"`
	Update    []string `json:"update"`
	Remove    []string `json:"remove"`
	Unchanged []string `json:"unchanged"`
}

type cleanupView struct {
	Root    string   `json:"root"`
	DryRun  bool     `json:"dry_run"`
	Deleted []string `json:"deleted"`
	Kept    int      `json:"kept"`
}

type resultView struct {
	Environment  string       `json:"environment"`
	Root         string       `json:"root"`
	DryRun       bool         `json:"dry_run"`
	Plan         *planView    `json:"plan,omitempty"`
	BytesWritten int64        `json:"bytes_written"`
	LaunchBytes  int64        `json:"launch_bytes_written"`
	Operations   int          `json:"operations"`
	Elevated     bool         `json:"elevated,omitempty"`
	LaunchFiles  []string     `json:"launch_files,omitempty"`
	Cleanup      *cleanupView `json:"cleanup,omitempty"`
	DurationMS   int64        `json:"duration_ms"`
	Error        *errorView   `json:"error,omitempty"`
}

type environmentView struct {
	Name         string   `json:"name"`
	Root         string   `json:"root"`
	Mode         string   `json:"mode"`
	Manifest     string   `json:"manifest,omitempty"`
	RuntimePaths []string `json:"runtime_paths,omitempty"`
}

type configView struct {
	Path         string            `json:"path,omitempty"`
	Mode         string            `json:"mode"`
	OutputDir    string            `json:"output_dir"`
	Parallelism  int               `json:"parallelism"`
	Elevation    bool              `json:"elevation"`
	Environments []environmentView `json:"environments"`
}

func newConfigView(cfg *config.Config) configView {
	v := configView{
		Path:         cfg.Path,
		Mode:         cfg.Mode,
		OutputDir:    cfg.OutputDir,
		Parallelism:  cfg.Sync.Parallelism,
		Elevation:    cfg.Elevation.Enabled,
		Environments: []environmentView{},
	}
	for _, name := range cfg.EnvironmentNames() {
		e := cfg.Environments[name]
		mode := e.Mode
		if mode == "" {
			mode = cfg.Mode
		}
		v.Environments = append(v.Environments, environmentView{
			Name: name, Root: e.Root, Mode: mode, Manifest: e.Manifest, RuntimePaths: e.RuntimePaths,
		})
	}
	return v
}

type artifactStatusView struct {
	Artifact string `json:"artifact"`
	Target   string `json:"target"`
	State    string `json:"state"`
	Message  string `json:"message"`
}

type statusView struct {
	Environment  string               `json:"environment"`
	Root         string               `json:"root"`
	Synchronized bool                 `json:"synchronized"`
	InSync       bool                 `json:"in_sync"`
	Mode         string               `json:"mode,omitempty"`
	Artifacts    []artifactStatusView `json:"artifacts"`
}

func newStatusView(rep *status.Report) statusView {
	v := statusView{
		Environment:  rep.Environment,
		Root:         rep.Root,
		Synchronized: rep.Synchronized,
		InSync:       rep.InSync(),
		Mode:         rep.Mode,
		Artifacts:    []artifactStatusView{},
	}
	for _, a := range rep.Artifacts {
		v.Artifacts = append(v.Artifacts, artifactStatusView{
			Artifact: a.Key.String(), Target: a.Target, State: string(a.State), Message: a.Message,
		})
	}
	return v
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func keys(list []types.ArtifactDescriptor) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.Key.String())
	}
	return out
}

func newResultView(res *distribution.SyncResult) resultView {
	v := resultView{
		Environment:  res.Environment,
		Root:         res.Root,
		DryRun:       res.DryRun,
		BytesWritten: res.Written.BytesWritten,
		LaunchBytes:  res.LaunchWritten.BytesWritten,
		Operations:   res.Written.Operations,
		Elevated:     res.Written.Elevated,
		LaunchFiles:  res.LaunchFiles,
		DurationMS:   res.Duration.Milliseconds(),
	}
	if res.Plan != nil {
		v.Plan = &planView{
			Install:   keys(res.Plan.Install),
			Update:    keys(res.Plan.Update),
			Remove:    keys(res.Plan.Remove),
			Unchanged: keys(res.Plan.Unchanged),
		}
	}
	if res.Cleanup != nil {
		c := newCleanupView(res.Cleanup)
		v.Cleanup = &c
	}
	if res.Err != nil {
		e := newErrorView(res.Err)
		v.Error = &e
	}
	return v
}

func newCleanupView(report *cleaner.Report) cleanupView {
	v := cleanupView{Root: report.Root, DryRun: report.DryRun, Kept: len(report.Kept)}
	v.Deleted = make([]string, 0, len(report.Deleted))
	for _, e := range report.Deleted {
		v.Deleted = append(v.Deleted, e.Rel)
	}
	return v
}

func newErrorView(err error) errorView {
	return errorView{
		Code:    string(errors.GetErrorCode(err)),
		Message: err.Error(),
		Reason:  errors.Reason(err),
	}
}
