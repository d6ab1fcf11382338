package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// Day0 anchors registry fixtures; Day(n) is n days after it.
var Day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func Day(n int) time.Time {
	return Day0.AddDate(0, 0, n)
}

type NpmRelease struct {
	Version string
	At      time.Time
	Deps    map[string]string
}

type PyPIRelease struct {
	Version  string
	At       time.Time
	Requires []string
	Yanked   bool
}

// Registry is a fake package registry. Hits counts every request.
type Registry struct {
	*httptest.Server
	Hits *atomic.Int32
}

// NewNpmRegistry serves packuments at /<name>. Unknown names get 404.
func NewNpmRegistry(t *testing.T, packages map[string][]NpmRelease) Registry {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		name := strings.TrimPrefix(r.URL.Path, "/")
		releases, ok := packages[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		versions := map[string]any{}
		times := map[string]string{
			"created":  Day(-100).Format(time.RFC3339),
			"modified": Day(100).Format(time.RFC3339),
		}
		for _, release := range releases {
			versions[release.Version] = map[string]any{
				"name":         name,
				"version":      release.Version,
				"dependencies": release.Deps,
			}
			times[release.Version] = release.At.Format(time.RFC3339Nano)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":     name,
			"versions": versions,
			"time":     times,
		})
	}))
	t.Cleanup(srv.Close)
	return Registry{Server: srv, Hits: &hits}
}

// NewPyPIRegistry serves /pypi/<name>/json and /pypi/<name>/<version>/json.
func NewPyPIRegistry(t *testing.T, projects map[string][]PyPIRelease) Registry {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 3 || parts[0] != "pypi" || parts[len(parts)-1] != "json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		releases, ok := projects[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if len(parts) == 4 {
			for _, release := range releases {
				if release.Version == parts[2] {
					_ = json.NewEncoder(w).Encode(map[string]any{
						"info": map[string]any{"name": parts[1], "version": release.Version, "requires_dist": release.Requires},
					})
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
			return
		}
		files := map[string]any{}
		for _, release := range releases {
			files[release.Version] = []map[string]any{{
				"upload_time":          release.At.Format("2006-01-02T15:04:05"),
				"upload_time_iso_8601": release.At.Format(time.RFC3339Nano),
				"yanked":               release.Yanked,
			}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"info":     map[string]any{"name": parts[1]},
			"releases": files,
		})
	}))
	t.Cleanup(srv.Close)
	return Registry{Server: srv, Hits: &hits}
}
