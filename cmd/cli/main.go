// SPDX-License-Identifier: Apache-2.0

// Small operator client for a running API instance. Not meant for end
// users: it exists so workflows can be inspected and toggled from a shell
// during development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kordes/flowstudio/internal/domain"
)

func main() {
	logger := newLogger()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cli := &client{
		baseURL: strings.TrimRight(getenv("API_URL", "http://localhost:8080"), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}

	var err error
	switch os.Args[1] {
	case "apps":
		err = cli.listApps(ctx)
	case "workflows":
		filter := "all"
		if len(os.Args) > 2 {
			filter = os.Args[2]
		}
		err = cli.listWorkflows(ctx, filter)
	case "toggle":
		if len(os.Args) < 3 {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		err = cli.toggle(ctx, os.Args[2])
	case "recent":
		limit := 10
		if len(os.Args) > 2 {
			limit, err = strconv.Atoi(os.Args[2])
			if err != nil {
				printUsage(os.Stderr)
				os.Exit(2)
			}
		}
		err = cli.recent(ctx, limit)
	default:
		printUsage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) post(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) listApps(ctx context.Context) error {
	var resp struct {
		Apps []domain.AppDescriptor `json:"apps"`
	}
	if err := c.get(ctx, "/apps", &resp); err != nil {
		return err
	}
	for _, app := range resp.Apps {
		fmt.Printf("%-16s %-14s %s\n", app.ID, app.Category, app.Name)
	}
	return nil
}

func (c *client) listWorkflows(ctx context.Context, filter string) error {
	var resp struct {
		Workflows []domain.Workflow `json:"workflows"`
	}
	if err := c.get(ctx, "/workflows?status="+filter, &resp); err != nil {
		return err
	}
	for _, wf := range resp.Workflows {
		fmt.Printf("%-38s %-8s %2d steps  %s\n", wf.ID, wf.Status, len(wf.Steps), wf.Name)
	}
	return nil
}

func (c *client) toggle(ctx context.Context, id string) error {
	var wf domain.Workflow
	if err := c.post(ctx, "/workflows/"+id+"/toggle", &wf); err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", wf.ID, wf.Status)
	return nil
}

func (c *client) recent(ctx context.Context, limit int) error {
	var resp struct {
		Executions []domain.ExecutionRecord `json:"executions"`
	}
	if err := c.get(ctx, "/executions/recent?limit="+strconv.Itoa(limit), &resp); err != nil {
		return err
	}
	for _, rec := range resp.Executions {
		fmt.Printf("%-12s %-8s %-6s %s  %s\n",
			rec.ID, rec.Status, rec.DurationLabel,
			rec.Timestamp.Format(time.RFC3339), rec.WorkflowName,
		)
	}
	return nil
}

func getenv(key, defaultValue string) string {
	v := os.Getenv(key)
	if v != "" {
		return v
	}
	return defaultValue
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func printUsage(w *os.File) {
	_, _ = fmt.Fprintln(w, "usage: go run ./cmd/cli <apps | workflows [all|active|paused|draft] | toggle <id> | recent [n]>")
}
