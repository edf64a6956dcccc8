package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"brightsteps-backend-go/internal/config"
)

const (
	StatusModeSummary = "summary"
	StatusModeDeep    = "deep"

	integrationConfigured = "configured"
	integrationMissing    = "missing"
	integrationOK         = "ok"
	integrationError      = "error"
)

type IntegrationStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Fix        string `json:"fix,omitempty"`
	LatencyMs  int64  `json:"latency_ms,omitempty"`
}

type IntegrationsReport struct {
	Mode         string              `json:"mode"`
	CheckedAt    time.Time           `json:"checked_at"`
	Integrations []IntegrationStatus `json:"integrations"`
	Host         *HostMetrics        `json:"host,omitempty"`
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatusEndpoints are the public API roots checked in deep mode.
type StatusEndpoints struct {
	GitHubAPI     string
	VercelAPI     string
	CloudflareAPI string
}

var DefaultStatusEndpoints = StatusEndpoints{
	GitHubAPI:     "https://api.github.com",
	VercelAPI:     "https://api.vercel.com",
	CloudflareAPI: "https://api.cloudflare.com/client/v4",
}

type IntegrationChecker struct {
	Cfg       config.Config
	DB        Pinger
	HTTP      *http.Client
	Endpoints StatusEndpoints
	// HostMetrics is swapped out in tests.
	HostMetrics func() HostMetrics
}

func NewIntegrationChecker(cfg config.Config, db Pinger) *IntegrationChecker {
	return &IntegrationChecker{
		Cfg:         cfg,
		DB:          db,
		HTTP:        &http.Client{},
		Endpoints:   DefaultStatusEndpoints,
		HostMetrics: func() HostMetrics { return CaptureHostMetrics(cfg.MetricsDiskPath) },
	}
}

type integrationCheck struct {
	status IntegrationStatus
	run    func(ctx context.Context) (string, error)
}

// Check reports configuration for every integration. Deep mode also calls
// each configured service once and samples the host.
func (c *IntegrationChecker) Check(ctx context.Context, mode string) (IntegrationsReport, error) {
	switch mode {
	case "", StatusModeSummary:
		mode = StatusModeSummary
	case StatusModeDeep:
	default:
		return IntegrationsReport{}, ErrBadRequest("mode must be summary or deep")
	}

	checks := c.checks()
	report := IntegrationsReport{Mode: mode, CheckedAt: time.Now().UTC(), Integrations: make([]IntegrationStatus, len(checks))}
	for i, p := range checks {
		report.Integrations[i] = p.status
	}
	if mode == StatusModeSummary {
		return report, nil
	}

	var group errgroup.Group
	for i, p := range checks {
		if !p.status.Configured || p.run == nil {
			continue
		}
		group.Go(func() error {
			started := time.Now()
			var detail string
			err := HealthCheckPolicy.Do(ctx, func(ctx context.Context) error {
				var err error
				detail, err = p.run(ctx)
				return err
			})
			status := &report.Integrations[i]
			status.LatencyMs = time.Since(started).Milliseconds()
			if err != nil {
				status.Status = integrationError
				status.Detail = err.Error()
				return nil
			}
			status.Status = integrationOK
			if detail != "" {
				status.Detail = detail
			}
			return nil
		})
	}
	_ = group.Wait()

	if c.HostMetrics != nil {
		host := c.HostMetrics()
		report.Host = &host
	}
	return report, nil
}

func (c *IntegrationChecker) checks() []integrationCheck {
	cfg := c.Cfg
	return []integrationCheck{
		{
			status: summaryStatus("database", cfg.DatabaseURL != "", "Set DATABASE_URL to the Supabase Postgres connection string."),
			run:    func(ctx context.Context) (string, error) {
				if c.DB == nil {
					return "", fmt.Errorf("no database handle")
				}
				return "", c.DB.PingContext(ctx)
			},
		},
		{
			status: summaryStatus("supabase", cfg.Supabase.URL != "" && cfg.Supabase.ServiceRoleKey != "",
				"Set SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY from the Supabase project API settings."),
			run:    func(ctx context.Context) (string, error) {
				return "", c.getJSON(ctx, "Supabase", cfg.Supabase.URL+"/rest/v1/", map[string]string{
					"apikey":        cfg.Supabase.ServiceRoleKey,
					"Authorization": "Bearer " + cfg.Supabase.ServiceRoleKey,
				}, nil)
			},
		},
		{
			status: summaryStatus("vercel", cfg.Vercel.Token != "" && cfg.Vercel.ProjectID != "",
				"Set VERCEL_TOKEN (account settings > tokens) and VERCEL_PROJECT_ID."),
			run:    func(ctx context.Context) (string, error) {
				var project struct {
					Name string `json:"name"`
				}
				err := c.getJSON(ctx, "Vercel", c.Endpoints.VercelAPI+"/v9/projects/"+cfg.Vercel.ProjectID, bearer(cfg.Vercel.Token), &project)
				return detailf("project %s", project.Name), err
			},
		},
		{
			status: summaryStatus("github", cfg.GitHub.Configured(),
				"Set GITHUB_SYNC_TOKEN (fine-grained, contents read/write) and GITHUB_SYNC_REPO as owner/name."),
			run:    func(ctx context.Context) (string, error) {
				var repo struct {
					FullName      string `json:"full_name"`
					DefaultBranch string `json:"default_branch"`
				}
				err := c.getJSON(ctx, "GitHub", c.Endpoints.GitHubAPI+"/repos/"+cfg.GitHub.Repo, githubHeaders(cfg.GitHub.Token), &repo)
				return detailf("%s (default branch %s)", repo.FullName, repo.DefaultBranch), err
			},
		},
		{
			status: summaryStatus("cloudflare", cfg.Cloudflare.APIToken != "" && cfg.Cloudflare.AccountID != "",
				"Set CLOUDFLARE_API_TOKEN (Cloudflare Tunnel read) and CLOUDFLARE_ACCOUNT_ID."),
			run:    func(ctx context.Context) (string, error) {
				var tunnels struct {
					Result []struct {
						Name   string `json:"name"`
						Status string `json:"status"`
					} `json:"result"`
				}
				url := c.Endpoints.CloudflareAPI + "/accounts/" + cfg.Cloudflare.AccountID + "/cfd_tunnel?is_deleted=false"
				err := c.getJSON(ctx, "Cloudflare", url, bearer(cfg.Cloudflare.APIToken), &tunnels)
				healthy := 0
				for _, t := range tunnels.Result {
					if t.Status == "healthy" {
						healthy++
					}
				}
				return fmt.Sprintf("%d tunnels, %d healthy", len(tunnels.Result), healthy), err
			},
		},
		{
			status: summaryStatus("llm", cfg.LLM.Configured(),
				"Set LLM_BASE_URL for a self-hosted OpenAI-compatible server or LLM_API_KEY for OpenAI; LLM_MODEL is optional."),
			run:    func(ctx context.Context) (string, error) {
				base := cfg.LLM.BaseURL
				if base == "" {
					base = "https://api.openai.com/v1"
				}
				var models struct {
					Data []struct {
						ID string `json:"id"`
					} `json:"data"`
				}
				err := c.getJSON(ctx, "LLM", base+"/models", bearer(cfg.LLM.APIKey), &models)
				return fmt.Sprintf("%d models available", len(models.Data)), err
			},
		},
		{
			status: summaryStatus("image_generation", cfg.ImageGen.BaseURL != "",
				"Set COMFYUI_BASE_URL and, behind Cloudflare Access, CF_ACCESS_CLIENT_ID and CF_ACCESS_CLIENT_SECRET."),
			run:    func(ctx context.Context) (string, error) {
				headers := map[string]string{}
				if cfg.ImageGen.AccessClientID != "" {
					headers["CF-Access-Client-Id"] = cfg.ImageGen.AccessClientID
					headers["CF-Access-Client-Secret"] = cfg.ImageGen.AccessClientSecret
				}
				var models []struct {
					Title string `json:"title"`
				}
				err := c.getJSON(ctx, "image API", cfg.ImageGen.BaseURL+"/sdapi/v1/sd-models", headers, &models)
				return fmt.Sprintf("%d checkpoints", len(models)), err
			},
		},
	}
}

func summaryStatus(name string, configured bool, fix string) IntegrationStatus {
	if configured {
		return IntegrationStatus{Name: name, Configured: true, Status: integrationConfigured}
	}
	return IntegrationStatus{Name: name, Status: integrationMissing, Fix: fix}
}

func (c *IntegrationChecker) getJSON(ctx context.Context, service, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	body, err := readResponse(service, resp)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s returned unexpected JSON: %w", service, err)
	}
	return nil
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func githubHeaders(token string) map[string]string {
	headers := bearer(token)
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Accept"] = "application/vnd.github+json"
	headers["X-GitHub-Api-Version"] = "2022-11-28"
	return headers
}

func detailf(format string, args ...any) string {
	for _, a := range args {
		if s, ok := a.(string); ok && s == "" {
			return ""
		}
	}
	return fmt.Sprintf(format, args...)
}
