package executor

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/prestige-dev/prestige/internal/logger"
)

// InstallResult captures one install run: success flag, combined output,
// and the packages that were requested.
type InstallResult struct {
	Success           bool
	Output            string
	InstalledPackages []string
}

// Installer installs packages into the project. There is no internal
// retry beyond the one configured fallback command.
type Installer interface {
	Install(ctx context.Context, packages []string) *InstallResult
}

// CommandInstaller shells out to a package manager. When the primary
// command fails it tries the fallback once (typically the same manager
// with relaxed peer-dependency resolution).
type CommandInstaller struct {
	workingDir string
	primary    []string
	fallback   []string
	timeout    time.Duration
	log        *logger.Logger
}

// NewCommandInstaller builds an installer rooted at workingDir. primary
// and fallback are command prefixes; package names are appended.
func NewCommandInstaller(workingDir string, primary, fallback []string, timeout time.Duration) *CommandInstaller {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &CommandInstaller{
		workingDir: workingDir,
		primary:    append([]string(nil), primary...),
		fallback:   append([]string(nil), fallback...),
		timeout:    timeout,
		log:        logger.Global().WithPrefix("installer"),
	}
}

// Install runs the primary command, falling back once on failure.
func (ci *CommandInstaller) Install(ctx context.Context, packages []string) *InstallResult {
	output, err := ci.run(ctx, ci.primary, packages)
	if err == nil {
		return &InstallResult{Success: true, Output: output, InstalledPackages: packages}
	}
	ci.log.Warn("primary install failed: %v", err)

	if len(ci.fallback) == 0 {
		return &InstallResult{Success: false, Output: output, InstalledPackages: packages}
	}

	fallbackOutput, err := ci.run(ctx, ci.fallback, packages)
	if err != nil {
		ci.log.Warn("fallback install failed: %v", err)
		return &InstallResult{Success: false, Output: fallbackOutput, InstalledPackages: packages}
	}
	return &InstallResult{Success: true, Output: fallbackOutput, InstalledPackages: packages}
}

func (ci *CommandInstaller) run(ctx context.Context, command, packages []string) (string, error) {
	if len(command) == 0 {
		return "", exec.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, ci.timeout)
	defer cancel()

	args := append(append([]string(nil), command[1:]...), packages...)
	cmd := exec.CommandContext(ctx, command[0], args...)
	cmd.Dir = ci.workingDir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	return buf.String(), err
}

// MockInstaller is a test installer with scripted results.
type MockInstaller struct {
	Result   *InstallResult
	Requests [][]string
}

func (mi *MockInstaller) Install(ctx context.Context, packages []string) *InstallResult {
	mi.Requests = append(mi.Requests, packages)
	if mi.Result != nil {
		out := *mi.Result
		if out.InstalledPackages == nil {
			out.InstalledPackages = packages
		}
		return &out
	}
	return &InstallResult{Success: true, InstalledPackages: packages}
}
