package sonar

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Analysis is one scanner invocation.
type Analysis struct {
	ProjectKey string
	SourceDir  string
}

// Scanner runs the sonar-scanner executable.
type Scanner struct {
	Executable string
	BaseURL    string
	Token      string
	Inclusions []string
	Exclusions []string

	// Output receives the scanner's stdout and stderr; nil discards them.
	Output io.Writer

	now func() time.Time
}

// WorkDir returns a fresh working directory name for an analysis, unique per
// project and invocation.
func (s *Scanner) WorkDir(a Analysis) string {
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	return filepath.Join(a.SourceDir, ".scannerwork_"+a.ProjectKey+"_"+strconv.FormatInt(now().UnixNano(), 10))
}

// Args returns the scanner command-line properties for an analysis.
func (s *Scanner) Args(a Analysis, workDir string) []string {
	args := []string{
		"-Dsonar.projectKey=" + a.ProjectKey,
		"-Dsonar.sources=" + a.SourceDir,
		"-Dsonar.host.url=" + s.BaseURL,
		"-Dsonar.scm.exclusions.disabled=true",
		"-Dsonar.working.directory=" + workDir,
	}

	if s.Token != "" {
		args = append(args, "-Dsonar.token="+s.Token)
	}

	if len(s.Inclusions) > 0 {
		args = append(args, "-Dsonar.inclusions="+strings.Join(s.Inclusions, ","))
	}

	if len(s.Exclusions) > 0 {
		args = append(args, "-Dsonar.exclusions="+strings.Join(s.Exclusions, ","))
	}

	return args
}

// Run analyses a.SourceDir and uploads the results under a.ProjectKey. A
// non-zero exit is returned as an error.
func (s *Scanner) Run(ctx context.Context, a Analysis) error {
	workDir := s.WorkDir(a)

	err := os.MkdirAll(workDir, 0o755)
	if err != nil {
		return fmt.Errorf("create scanner work dir: %w", err)
	}

	out := s.Output
	if out == nil {
		out = io.Discard
	}

	cmd := exec.CommandContext(ctx, s.Executable, s.Args(a, workDir)...)
	cmd.Dir = a.SourceDir
	cmd.Stdout = out
	cmd.Stderr = out

	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("run %s for %s: %w", s.Executable, a.ProjectKey, err)
	}

	return nil
}
