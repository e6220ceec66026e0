package status

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/internal/hashutil"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/materialize"
	"github.com/arthur-debert/distsync/pkg/paths"
	"github.com/arthur-debert/distsync/pkg/state"
	"github.com/arthur-debert/distsync/pkg/types"
)

// State is the condition of one deployed artifact.
type State string

const (
	StateOK       State = "ok"       // Target matches what was deployed
	StateMissing  State = "missing"  // Target is gone
	StateConflict State = "conflict" // Target is the wrong kind of file or links elsewhere
	StateModified State = "modified" // Copied target no longer matches the source size
	StateOutdated State = "outdated" // Source changed or vanished since the last pass
	StateError    State = "error"    // Target could not be inspected
)

// ArtifactStatus is the state of one recorded artifact.
type ArtifactStatus struct {
	Key      types.ArtifactKey
	Target   string
	State    State
	Message  string
	Metadata map[string]interface{}
}

// Report is the state of one environment.
type Report struct {
	Environment string
	Root        string
	// Synchronized is false when no descriptor exists yet.
	Synchronized bool
	Mode         string
	UpdatedAt    time.Time
	Artifacts    []ArtifactStatus
}

// Counts returns the number of artifacts per state.
func (r *Report) Counts() map[State]int {
	counts := make(map[State]int)
	for _, a := range r.Artifacts {
		counts[a.State]++
	}
	return counts
}

// InSync reports whether the environment was synchronized and every artifact
// is ok.
func (r *Report) InSync() bool {
	if !r.Synchronized {
		return false
	}
	for _, a := range r.Artifacts {
		if a.State != StateOK {
			return false
		}
	}
	return true
}

// Checker inspects environments through FS.
type Checker struct {
	FS types.FS
}

// NewChecker creates a checker over fsys.
func NewChecker(fsys types.FS) *Checker {
	return &Checker{FS: fsys}
}

// Check reports on the environment rooted at root.
func (c *Checker) Check(name, root string) (*Report, error) {
	logger := logging.GetLogger("status").With().Str("environment", name).Logger()

	layout, err := paths.NewLayout(root)
	if err != nil {
		return nil, err
	}
	report := &Report{Environment: name, Root: layout.Root()}

	desc, err := state.Load(c.FS, layout.DescriptorPath())
	if err != nil {
		return nil, err
	}
	if desc == nil {
		logger.Debug().Msg("Environment was never synchronized")
		return report, nil
	}
	report.Synchronized = true
	report.Mode = desc.Mode
	report.UpdatedAt = desc.UpdatedAt

	for _, rec := range desc.Artifacts {
		report.Artifacts = append(report.Artifacts, c.checkRecord(layout, materialize.Mode(desc.Mode), rec))
	}

	logger.Debug().
		Int("artifacts", len(report.Artifacts)).
		Bool("inSync", report.InSync()).
		Msg("Status checked")
	return report, nil
}

func (c *Checker) checkRecord(layout paths.Layout, mode materialize.Mode, rec state.Record) ArtifactStatus {
	status := ArtifactStatus{
		Key:      rec.Key,
		State:    StateOK,
		Metadata: map[string]interface{}{"source": rec.Source},
	}
	target, err := layout.Resolve(rec.Target)
	if err != nil {
		status.State = StateError
		status.Message = fmt.Sprintf("Invalid target %q: %v", rec.Target, err)
		return status
	}
	status.Target = target

	info, err := c.FS.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			status.State = StateMissing
			status.Message = "Target does not exist"
			return status
		}
		status.State = StateError
		status.Message = fmt.Sprintf("Failed to inspect target: %v", err)
		return status
	}
	isLink := info.Mode()&iofs.ModeSymlink != 0
	status.Metadata["is_symlink"] = isLink

	switch {
	case rec.Extract:
		if !info.IsDir() {
			status.State = StateConflict
			status.Message = "Extraction target is not a directory"
			return status
		}
	case mode == materialize.ModeLink:
		if !c.checkLink(&status, target, rec.Source, isLink) {
			return status
		}
	default:
		if !c.checkCopy(&status, info, rec, isLink) {
			return status
		}
	}

	c.checkSource(&status, rec)
	if status.State == StateOK {
		status.Message = "Up to date"
	}
	return status
}

// checkLink reports whether target is a link to source.
func (c *Checker) checkLink(status *ArtifactStatus, target, source string, isLink bool) bool {
	if !isLink {
		status.State = StateConflict
		status.Message = "Path exists but is not a symlink"
		return false
	}
	actual, err := c.FS.Readlink(target)
	if err != nil {
		status.State = StateError
		status.Message = fmt.Sprintf("Failed to read symlink: %v", err)
		return false
	}
	status.Metadata["actual_target"] = actual
	if !filepath.IsAbs(actual) {
		actual = filepath.Join(filepath.Dir(target), actual)
	}
	if filepath.Clean(actual) != filepath.Clean(source) {
		status.State = StateConflict
		status.Message = "Symlink points to " + actual
		return false
	}
	return true
}

// checkCopy reports whether a copied target still has the recorded size.
func (c *Checker) checkCopy(status *ArtifactStatus, info iofs.FileInfo, rec state.Record, isLink bool) bool {
	if isLink || !info.Mode().IsRegular() {
		status.State = StateConflict
		status.Message = "Path exists but is not a regular file"
		return false
	}
	status.Metadata["size"] = info.Size()
	if rec.Signature.Checksum != "" {
		sum, err := hashutil.FileChecksum(c.FS, status.Target)
		if err != nil {
			status.State = StateError
			status.Message = fmt.Sprintf("Failed to checksum target: %v", err)
			return false
		}
		status.Metadata["checksum"] = sum
		if !hashutil.Equal(sum, rec.Signature.Checksum) {
			status.State = StateModified
			status.Message = "Target checksum does not match the recorded checksum"
			return false
		}
		return true
	}
	if info.Size() != rec.Signature.Size {
		status.State = StateModified
		status.Message = fmt.Sprintf("Target has %d bytes, source had %d", info.Size(), rec.Signature.Size)
		return false
	}
	return true
}

// checkSource marks the artifact outdated when its source changed.
func (c *Checker) checkSource(status *ArtifactStatus, rec state.Record) {
	info, err := c.FS.Stat(rec.Source)
	if err != nil {
		status.State = StateOutdated
		status.Message = "Source is no longer readable"
		status.Metadata["source_error"] = errors.Wrap(err, errors.ErrUnreadableSource, "stat source").Error()
		return
	}
	if rec.Signature.Checksum != "" {
		sum, err := hashutil.FileChecksum(c.FS, rec.Source)
		if err == nil && !hashutil.Equal(sum, rec.Signature.Checksum) {
			status.State = StateOutdated
			status.Message = "Source checksum differs from the recorded checksum"
		}
		return
	}
	current := types.SignatureOf(info)
	if current.Size != rec.Signature.Size || current.ModTime != rec.Signature.ModTime {
		status.State = StateOutdated
		status.Message = "Source changed since the last synchronization"
	}
}
