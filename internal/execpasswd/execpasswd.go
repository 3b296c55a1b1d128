// Package execpasswd resolves a CardDAV account's password by running an
// external command and reading its standard output, the same
// passwd-command model the original CLI used for per-account credential
// resolution (spec §4.3.2, §6 "Credentials").
package execpasswd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Resolve runs cmd through the shell and returns its stdout with trailing
// CR/LF trimmed. An empty cmd is a configuration error, not attempted.
func Resolve(ctx context.Context, cmd string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", fmt.Errorf("execpasswd: passwd_cmd is empty")
	}

	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		return "", fmt.Errorf("execpasswd: run %q: %w (stderr: %s)", cmd, err, strings.TrimSpace(stderr.String()))
	}

	pw := strings.TrimRight(stdout.String(), "\r\n")
	if pw == "" {
		return "", fmt.Errorf("execpasswd: %q produced no output", cmd)
	}
	return pw, nil
}
