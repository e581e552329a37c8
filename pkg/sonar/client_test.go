package sonar_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/freelaudit/pkg/sonar"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestEnsureProject_CreatesWhenMissing(t *testing.T) {
	t.Parallel()

	var created atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "squ_token", user)
		assert.Empty(t, pass)

		switch r.URL.Path {
		case "/api/projects/search":
			assert.Equal(t, "mona_site", r.URL.Query().Get("projects"))
			writeJSON(t, w, map[string]any{"components": []any{}})
		case "/api/projects/create":
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "mona_site", r.PostForm.Get("project"))
			assert.Equal(t, "mona/site", r.PostForm.Get("name"))
			created.Store(true)
			writeJSON(t, w, map[string]any{"project": map[string]string{"key": "mona_site"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := sonar.New(sonar.Options{BaseURL: srv.URL, Token: "squ_token"})

	existed, err := client.EnsureProject(context.Background(), "mona_site", "mona/site")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.True(t, created.Load())
}

func TestEnsureProject_Existing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/search" {
			t.Errorf("unexpected request %s", r.URL.Path)
		}

		writeJSON(t, w, map[string]any{"components": []any{map[string]string{"key": "mona_site"}}})
	}))
	defer srv.Close()

	existed, err := sonar.New(sonar.Options{BaseURL: srv.URL}).EnsureProject(context.Background(), "mona_site", "mona/site")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestCreateProject_Failure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":[{"msg":"Insufficient privileges"}]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	err := sonar.New(sonar.Options{BaseURL: srv.URL}).CreateProject(context.Background(), "k", "n")
	require.ErrorIs(t, err, sonar.ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "Insufficient privileges")
}

func TestIssues_Paginates(t *testing.T) {
	t.Parallel()

	pages := map[string][]sonar.Issue{
		"1": {{Key: "a", Component: "k:a.py"}, {Key: "b", Component: "k:b.py"}},
		"2": {{Key: "c", Component: "k:c.js", Impacts: []sonar.Impact{{SoftwareQuality: "SECURITY"}}}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/issues/search", r.URL.Path)
		assert.Equal(t, "mona_site", q.Get("componentKeys"))
		assert.Equal(t, "2", q.Get("ps"))

		writeJSON(t, w, map[string]any{
			"total":  3,
			"paging": map[string]int{"pageIndex": 1, "pageSize": 2, "total": 3},
			"issues": pages[q.Get("p")],
		})
	}))
	defer srv.Close()

	issues, err := sonar.New(sonar.Options{BaseURL: srv.URL, PageSize: 2}).Issues(context.Background(), "mona_site")
	require.NoError(t, err)

	require.Len(t, issues, 3)
	assert.Equal(t, "c", issues[2].Key)
	assert.Equal(t, "SECURITY", issues[2].Impacts[0].SoftwareQuality)
}

func TestFileMeasures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/measures/component_tree", r.URL.Path)
		assert.Equal(t, "ncloc", q.Get("metricKeys"))

		writeJSON(t, w, map[string]any{
			"paging": map[string]int{"pageIndex": 1, "pageSize": 500, "total": 2},
			"components": []map[string]any{
				{"key": "k:src", "path": "src", "qualifier": "DIR"},
				{"key": "k:src/a.py", "path": "src/a.py", "qualifier": "FIL",
					"measures": []map[string]string{{"metric": "ncloc", "value": "42"}}},
			},
		})
	}))
	defer srv.Close()

	comps, err := sonar.New(sonar.Options{BaseURL: srv.URL}).FileMeasures(context.Background(), "k")
	require.NoError(t, err)

	require.Len(t, comps, 2)
	assert.Equal(t, sonar.QualifierFile, comps[1].Qualifier)
	assert.Equal(t, "42", comps[1].Measures[0].Value)
}

func TestFileMeasures_Empty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"paging": map[string]int{"total": 0}, "components": []any{}})
	}))
	defer srv.Close()

	_, err := sonar.New(sonar.Options{BaseURL: srv.URL}).FileMeasures(context.Background(), "k")
	require.ErrorIs(t, err, sonar.ErrNoMeasures)
}
