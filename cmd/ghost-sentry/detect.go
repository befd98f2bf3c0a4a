package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/ghost-sentry/internal/detect"
	"github.com/boshu2/ghost-sentry/internal/sentry"
)

func newDetectCmd() *cobra.Command {
	var (
		file     string
		endpoint string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Replay canned detections into a running gateway",
		RunE: func(*cobra.Command, []string) error {
			return runDetect(file, endpoint)
		},
	}
	cmd.Flags().StringVar(&file, "file", "detections.json", "JSON file of detections to replay")
	cmd.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8000", "gateway base URL")
	return cmd
}

func runDetect(file, endpoint string) error {
	detector := &detect.MockDetector{Path: file}
	detections, err := detector.Detect("")
	if err != nil {
		return err
	}
	slog.Info("loaded detections", "file", file, "count", len(detections))

	body, err := json.Marshal(detections)
	if err != nil {
		return fmt.Errorf("marshal detections: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(endpoint+"/detections", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post detections: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}

	var result sentry.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	slog.Info("detections processed",
		"tracks", len(result.Tracks),
		"tasks", len(result.Tasks),
		"formations", len(result.Formations),
	)
	for _, t := range result.Tasks {
		slog.Info("task cued", "task_id", t.ID, "type", t.Type, "assigned_to", t.AssignedTo)
	}
	return nil
}
