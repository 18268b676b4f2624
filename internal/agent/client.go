// SPDX-License-Identifier: Apache-2.0

// Package agent is the client for the external natural-language intent
// interpreter. The interpreter is an unreliable collaborator: every failure
// mode here maps to ErrExternalCallFailed and callers degrade to manual
// configuration.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
)

type Deps struct {
	BaseURL    string
	AgentID    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL string
	agentID string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(deps Deps) *Client {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	hc := deps.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: deps.BaseURL,
		agentID: deps.AgentID,
		http:    hc,
		logger:  l,
	}
}

// Interpretation is the interpreter's reading of a user message: optional
// guidance text plus suggested trigger and action apps by display name.
type Interpretation struct {
	Guidance   string
	TriggerApp string
	ActionApps []string
}

type interpretRequest struct {
	Message string `json:"message"`
	AgentID string `json:"agentId"`
}

type interpretResponse struct {
	Success  bool `json:"success"`
	Response struct {
		Result *struct {
			Guidance string `json:"guidance"`
			Trigger  *struct {
				App string `json:"app"`
			} `json:"trigger"`
			Actions []struct {
				App string `json:"app"`
			} `json:"actions"`
		} `json:"result"`
	} `json:"response"`
}

// Interpret sends the user's message. The call is canceled through ctx;
// canceling is safe at any point and surfaces as ErrExternalCallFailed.
func (c *Client) Interpret(ctx context.Context, message string) (Interpretation, error) {
	body, err := json.Marshal(interpretRequest{Message: message, AgentID: c.agentID})
	if err != nil {
		return Interpretation{}, fmt.Errorf("%w: encode request: %v", domain.ErrExternalCallFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Interpretation{}, fmt.Errorf("%w: build request: %v", domain.ErrExternalCallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncAgentRequest("failed")
		c.logger.Warn("intent interpreter unreachable", "error", err)
		return Interpretation{}, fmt.Errorf("%w: %v", domain.ErrExternalCallFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncAgentRequest("failed")
		c.logger.Warn("intent interpreter returned error status", "status", resp.StatusCode)
		return Interpretation{}, fmt.Errorf("%w: status %d", domain.ErrExternalCallFailed, resp.StatusCode)
	}

	var decoded interpretResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		metrics.IncAgentRequest("failed")
		return Interpretation{}, fmt.Errorf("%w: decode response: %v", domain.ErrExternalCallFailed, err)
	}

	if !decoded.Success || decoded.Response.Result == nil {
		metrics.IncAgentRequest("failed")
		return Interpretation{}, fmt.Errorf("%w: interpreter reported failure", domain.ErrExternalCallFailed)
	}

	result := decoded.Response.Result
	out := Interpretation{Guidance: result.Guidance}
	if result.Trigger != nil {
		out.TriggerApp = result.Trigger.App
	}
	for _, a := range result.Actions {
		if a.App != "" {
			out.ActionApps = append(out.ActionApps, a.App)
		}
	}

	metrics.IncAgentRequest("ok")
	return out, nil
}
