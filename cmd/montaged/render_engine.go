package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"montage/internal/logging"
	"montage/internal/services"
)

// commandEngine shells out to an external render command. The command is
// invoked with the output path appended as its final argument and receives
// the render plan as JSON on stdin. Lines of the form "progress <fraction>"
// on stdout drive progress reporting; all other output is logged.
type commandEngine struct {
	command string
	logger  *slog.Logger
}

func newCommandEngine(command string, logger *slog.Logger) *commandEngine {
	return &commandEngine{
		command: command,
		logger:  logging.NewComponentLogger(logger, "render-engine"),
	}
}

func (e *commandEngine) Render(ctx context.Context, plan services.RenderPlan, outputPath string, onProgress func(float64)) error {
	parts := strings.Fields(e.command)
	if len(parts) == 0 {
		return fmt.Errorf("empty render command")
	}
	args := append(parts[1:], outputPath)

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode render plan: %w", err)
	}

	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Stdin = bytes.NewReader(planJSON)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start render command: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if fraction, ok := parseProgressLine(line); ok {
			if onProgress != nil {
				onProgress(fraction)
			}
			continue
		}
		if line != "" {
			e.logger.Debug("render output", logging.String("line", line))
		}
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("render command: %w: %s", err, detail)
		}
		return fmt.Errorf("render command: %w", err)
	}
	return nil
}

// parseProgressLine extracts the fraction from "progress <fraction>" lines.
func parseProgressLine(line string) (float64, bool) {
	rest, ok := strings.CutPrefix(line, "progress ")
	if !ok {
		return 0, false
	}
	fraction, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil || fraction < 0 || fraction > 1 {
		return 0, false
	}
	return fraction, true
}
