package agent

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// versionProbeTimeout bounds how long a `--version` probe may block.
const versionProbeTimeout = 5 * time.Second

// ProbeBinary reports whether binary is on PATH and, if so, runs
// `<binary> --version` (stderr discarded — some CLIs emit runtime
// deprecation noise there) to fetch a version string for diagnostics.
// Non-fatal: a failed version probe does not make the binary unavailable.
func ProbeBinary(ctx context.Context, binary string) (installed bool, version string) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return false, ""
	}

	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, path, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return true, ""
	}

	firstLine := strings.SplitN(strings.TrimSpace(out.String()), "\n", 2)[0]
	return true, strings.TrimSpace(firstLine)
}
