package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Version reports the installed yt-dlp version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.cfg.Binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("query %s version: %w", c.cfg.Binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// SelfUpdate upgrades yt-dlp in place via its own -U mechanism and returns
// the tool's final status line.
func (c *Client) SelfUpdate(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.cfg.Binary, "-U").CombinedOutput()
	message := lastNonEmptyLine(string(out))
	if err != nil {
		if message == "" {
			message = err.Error()
		}
		return "", fmt.Errorf("update %s: %s", c.cfg.Binary, message)
	}
	if message == "" {
		message = "yt-dlp updated"
	}

	c.logger.Info().Str("result", message).Msg("Tool update finished")
	return message, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
