package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps-backend-go/internal/config"
)

// fakeGitHub serves the contents API for one file. existingSHA empty means
// the file is not in the repository yet.
func fakeGitHub(t *testing.T, existingSHA string, puts *[]githubPutRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/brightsteps/content/contents/lessons/MATH_Y3_fractions_AU.json", r.URL.Path)
		assert.Equal(t, "Bearer ghp", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "content-sync", r.URL.Query().Get("ref"))
			if existingSHA == "" {
				http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(githubContent{SHA: existingSHA, Path: "lessons/MATH_Y3_fractions_AU.json"})
		case http.MethodPut:
			var body githubPutRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			*puts = append(*puts, body)
			status := http.StatusOK
			if existingSHA == "" {
				status = http.StatusCreated
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"content":{"sha":"blob2","path":"lessons/MATH_Y3_fractions_AU.json"},"commit":{"sha":"c0ffee"}}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSyncer(baseURL string) *ContentSyncer {
	syncer := NewContentSyncer(config.GitHubConfig{
		Token:      "ghp",
		Repo:       "brightsteps/content",
		Branch:     "content-sync",
		ContentDir: "lessons",
	}, nil)
	syncer.APIBase = baseURL
	return syncer
}

func TestContentSyncer_CreatesFile(t *testing.T) {
	var puts []githubPutRequest
	srv := fakeGitHub(t, "", &puts)

	result, err := testSyncer(srv.URL).SyncEdition(context.Background(), "MATH_Y3_fractions_AU", []byte(`{"meta":{"topic":"Fractions"}}`))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "c0ffee", result.Commit)
	assert.Equal(t, "lessons/MATH_Y3_fractions_AU.json", result.Path)

	require.Len(t, puts, 1)
	assert.Empty(t, puts[0].SHA)
	assert.Equal(t, "content-sync", puts[0].Branch)
	assert.Equal(t, "Sync lesson MATH_Y3_fractions_AU", puts[0].Message)
	decoded, err := base64.StdEncoding.DecodeString(puts[0].Content)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"meta\": {\n    \"topic\": \"Fractions\"\n  }\n}\n", string(decoded))
}

func TestContentSyncer_UpdatesExistingFile(t *testing.T) {
	var puts []githubPutRequest
	srv := fakeGitHub(t, "blob1", &puts)

	result, err := testSyncer(srv.URL).SyncEdition(context.Background(), "MATH_Y3_fractions_AU", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Created)
	require.Len(t, puts, 1)
	assert.Equal(t, "blob1", puts[0].SHA)
}

func TestContentSyncer_Errors(t *testing.T) {
	_, err := NewContentSyncer(config.GitHubConfig{}, nil).SyncEdition(context.Background(), "x", []byte(`{}`))
	assert.Equal(t, errGitHubNotConfigured, err)

	_, err = testSyncer("http://127.0.0.1:0").SyncEdition(context.Background(), "x", []byte(`{not json`))
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, serr.Status)
}
