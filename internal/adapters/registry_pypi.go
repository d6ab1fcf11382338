package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/shared"
	"dependency-metrics/internal/types"
)

const DefaultPyPIRegistry = "https://pypi.org"

type PyPIRegistryAdapter struct {
	baseURL string
	client  *RegistryClient
}

type pypiPackageDoc struct {
	Info     pypiInfo                   `json:"info"`
	Releases map[string][]pypiFileEntry `json:"releases"`
}

type pypiInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	RequiresDist []string `json:"requires_dist"`
}

type pypiFileEntry struct {
	UploadTime        string `json:"upload_time"`
	UploadTimeISO8601 string `json:"upload_time_iso_8601"`
	Yanked            bool   `json:"yanked"`
}

func NewPyPIRegistryAdapter(baseURL string, client *RegistryClient) PyPIRegistryAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultPyPIRegistry
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	base = strings.TrimSuffix(base, "/pypi")
	return PyPIRegistryAdapter{baseURL: base, client: client}
}

// FetchPackage reads the project JSON. A release is dated by its first
// uploaded file; releases without files keep an empty timestamp.
func (a PyPIRegistryAdapter) FetchPackage(ctx context.Context, name string) (types.PackageMetadata, error) {
	endpoint := fmt.Sprintf("%s/pypi/%s/json", a.baseURL, url.PathEscape(shared.NormalizePipName(name)))
	var doc pypiPackageDoc
	if err := a.client.GetJSON(ctx, endpoint, &doc); err != nil {
		return types.PackageMetadata{}, err
	}
	meta := types.PackageMetadata{
		Ecosystem: types.EcosystemPyPI,
		Name:      name,
		Versions:  map[string]types.VersionData{},
	}
	for version, files := range doc.Releases {
		data := types.VersionData{Version: version}
		if len(files) > 0 {
			data.Published = firstNonEmpty(files[0].UploadTimeISO8601, files[0].UploadTime)
			data.Yanked = true
			for _, file := range files {
				data.Yanked = data.Yanked && file.Yanked
			}
		}
		meta.Versions[version] = data
	}
	return meta, nil
}

// FetchVersion reads the per-release JSON, the only place PyPI exposes a
// historical release's requires_dist.
func (a PyPIRegistryAdapter) FetchVersion(ctx context.Context, name string, version string) (types.VersionData, error) {
	endpoint := fmt.Sprintf("%s/pypi/%s/%s/json", a.baseURL, url.PathEscape(shared.NormalizePipName(name)), url.PathEscape(version))
	var doc pypiPackageDoc
	if err := a.client.GetJSON(ctx, endpoint, &doc); err != nil {
		return types.VersionData{}, err
	}
	return types.VersionData{
		Version:      version,
		RequiresDist: append([]string(nil), doc.Info.RequiresDist...),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

var _ ports.MetadataFetcherPort = PyPIRegistryAdapter{}
