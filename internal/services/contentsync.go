package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"brightsteps-backend-go/internal/config"
	"brightsteps-backend-go/internal/logger"
)

var errGitHubNotConfigured = ServiceError{Status: http.StatusInternalServerError, Message: "GitHub sync is not configured (set GITHUB_SYNC_TOKEN and GITHUB_SYNC_REPO)"}

type SyncResult struct {
	Path    string `json:"path"`
	Commit  string `json:"commit"`
	Created bool   `json:"created"`
}

// ContentSyncer commits edition JSON into the content repository through the
// GitHub contents API.
type ContentSyncer struct {
	Cfg     config.GitHubConfig
	HTTP    *http.Client
	APIBase string
	Log     *logger.Logger
}

func NewContentSyncer(cfg config.GitHubConfig, log *logger.Logger) *ContentSyncer {
	if log == nil {
		log = logger.Nop()
	}
	return &ContentSyncer{
		Cfg:     cfg,
		HTTP:    &http.Client{},
		APIBase: DefaultStatusEndpoints.GitHubAPI,
		Log:     log.With("service", "content_sync"),
	}
}

type githubContent struct {
	SHA  string `json:"sha"`
	Path string `json:"path"`
}

type githubPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type githubPutResponse struct {
	Content githubContent `json:"content"`
	Commit  struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

func (s *ContentSyncer) SyncEdition(ctx context.Context, editionID string, wrapper []byte) (SyncResult, error) {
	if !s.Cfg.Configured() {
		return SyncResult{}, errGitHubNotConfigured
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, wrapper, "", "  "); err != nil {
		return SyncResult{}, ErrBadRequest("edition JSON is not valid: " + err.Error())
	}
	pretty.WriteByte('\n')

	filePath := path.Join(s.Cfg.ContentDir, safeFileName(editionID)+".json")
	sha, err := s.currentSHA(ctx, filePath)
	if err != nil {
		return SyncResult{}, ErrUpstream(err)
	}

	payload := githubPutRequest{
		Message: fmt.Sprintf("Sync lesson %s", editionID),
		Content: base64.StdEncoding.EncodeToString(pretty.Bytes()),
		Branch:  s.Cfg.Branch,
		SHA:     sha,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SyncResult{}, err
	}

	var out githubPutResponse
	err = GitHubPolicy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(filePath), bytes.NewReader(body))
		if err != nil {
			return err
		}
		s.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.HTTP.Do(req)
		if err != nil {
			return err
		}
		raw, err := readResponse("GitHub", resp)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &out)
	})
	if err != nil {
		s.Log.Warn("content sync failed", "edition_id", editionID, "error", err)
		return SyncResult{}, ErrUpstream(err)
	}

	s.Log.Info("content synced", "edition_id", editionID, "path", filePath, "commit", out.Commit.SHA)
	return SyncResult{Path: filePath, Commit: out.Commit.SHA, Created: sha == ""}, nil
}

// currentSHA returns the blob sha of filePath on the sync branch, or "" when
// the file does not exist yet.
func (s *ContentSyncer) currentSHA(ctx context.Context, filePath string) (string, error) {
	var sha string
	err := GitHubPolicy.Do(ctx, func(ctx context.Context) error {
		target := s.contentsURL(filePath)
		if s.Cfg.Branch != "" {
			target += "?ref=" + url.QueryEscape(s.Cfg.Branch)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		s.setHeaders(req)
		resp, err := s.HTTP.Do(req)
		if err != nil {
			return err
		}
		raw, err := readResponse("GitHub", resp)
		if err != nil {
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				sha = ""
				return nil
			}
			return err
		}
		var existing githubContent
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("GitHub returned unexpected JSON: %w", err)
		}
		sha = existing.SHA
		return nil
	})
	return sha, err
}

func (s *ContentSyncer) contentsURL(filePath string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", s.APIBase, s.Cfg.Repo, filePath)
}

func (s *ContentSyncer) setHeaders(req *http.Request) {
	for k, v := range githubHeaders(s.Cfg.Token) {
		req.Header.Set(k, v)
	}
}
