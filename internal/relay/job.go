package relay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/italolelis/leechbot/internal/logctx"
)

const (
	workspacePerm = 0755

	// WorkspacePrefix names per-job directories under the download directory.
	WorkspacePrefix = "job-"
)

// State is a step of the relay state machine.
type State int

const (
	StateIdle State = iota
	StateAuthorizing
	StateValidating
	StateDownloading
	StateDownloaded
	StateUploading
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateAuthorizing: "authorizing",
	StateValidating:  "validating",
	StateDownloading: "downloading",
	StateDownloaded:  "downloaded",
	StateUploading:   "uploading",
	StateCompleted:   "completed",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is the state of one relay. It belongs to a single HandleLeech call.
type Job struct {
	ID            string
	Dir           string // per-job workspace holding the temp and final file
	TempPath      string
	FinalPath     string
	Downloaded    int64
	DeclaredTotal int64
	Ceiling       int64
	LastReport    time.Time
	State         State
}

func newJob(id string, ceiling int64) *Job {
	return &Job{ID: id, Ceiling: ceiling, State: StateIdle}
}

func (j *Job) transition(ctx context.Context, to State) {
	logctx.LoggerFromContext(ctx).Debug("job state changed", "from", j.State.String(), "to", to.String())

	j.State = to
}

// acquire creates the job workspace. The temp file keeps the leech_<unix> name; the
// random workspace name is what keeps concurrent jobs apart.
func (j *Job) acquire(downloadDir string, now time.Time) error {
	j.Dir = filepath.Join(downloadDir, fmt.Sprintf("%s%d-%s", WorkspacePrefix, now.Unix(), j.ID))
	if err := os.MkdirAll(j.Dir, workspacePerm); err != nil {
		return fmt.Errorf("failed to create job workspace: %w", err)
	}

	j.TempPath = filepath.Join(j.Dir, fmt.Sprintf("leech_%d", now.Unix()))

	return nil
}

// finalize renames the downloaded temp file to filename inside the workspace.
func (j *Job) finalize(filename string) error {
	final := filepath.Join(j.Dir, filename)
	if err := os.Rename(j.TempPath, final); err != nil {
		return fmt.Errorf("failed to rename downloaded file: %w", err)
	}

	j.FinalPath = final

	return nil
}

// release removes everything the job wrote. Failures are logged and swallowed.
func (j *Job) release(ctx context.Context) {
	if j.Dir == "" {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	if err := os.RemoveAll(j.Dir); err != nil {
		logger.Warn("failed to clean up job workspace", "dir", j.Dir, "err", err)

		return
	}

	logger.Debug("job workspace removed", "dir", j.Dir)
}
