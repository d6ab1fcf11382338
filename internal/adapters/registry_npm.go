package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

const DefaultNpmRegistry = "https://registry.npmjs.org"

type NpmRegistryAdapter struct {
	baseURL string
	client  *RegistryClient
}

type npmPackageDoc struct {
	Name     string                   `json:"name"`
	Versions map[string]npmVersionDoc `json:"versions"`
	Time     map[string]string        `json:"time"`
}

type npmVersionDoc struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
	Deprecated   any               `json:"deprecated"`
}

func NewNpmRegistryAdapter(baseURL string, client *RegistryClient) NpmRegistryAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultNpmRegistry
	}
	return NpmRegistryAdapter{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

// packageURL escapes the "/" of scoped names ("@scope%2Fname").
func (a NpmRegistryAdapter) packageURL(name string) string {
	return fmt.Sprintf("%s/%s", a.baseURL, url.PathEscape(name))
}

// FetchPackage reads the packument. Release times come from its "time"
// map; the "created" and "modified" entries are not versions.
func (a NpmRegistryAdapter) FetchPackage(ctx context.Context, name string) (types.PackageMetadata, error) {
	var doc npmPackageDoc
	if err := a.client.GetJSON(ctx, a.packageURL(name), &doc); err != nil {
		return types.PackageMetadata{}, err
	}
	meta := types.PackageMetadata{
		Ecosystem: types.EcosystemNpm,
		Name:      name,
		Versions:  map[string]types.VersionData{},
	}
	for version, info := range doc.Versions {
		meta.Versions[version] = types.VersionData{
			Version:      version,
			Published:    doc.Time[version],
			Dependencies: copyDeps(info.Dependencies),
		}
	}
	for version, published := range doc.Time {
		if version == "created" || version == "modified" {
			continue
		}
		if _, ok := meta.Versions[version]; ok {
			continue
		}
		// Unpublished versions keep their timestamp but declare nothing.
		meta.Versions[version] = types.VersionData{Version: version, Published: published}
	}
	return meta, nil
}

func (a NpmRegistryAdapter) FetchVersion(ctx context.Context, name string, version string) (types.VersionData, error) {
	var doc npmVersionDoc
	if err := a.client.GetJSON(ctx, a.packageURL(name)+"/"+url.PathEscape(version), &doc); err != nil {
		return types.VersionData{}, err
	}
	return types.VersionData{
		Version:      version,
		Dependencies: copyDeps(doc.Dependencies),
	}, nil
}

func copyDeps(deps map[string]string) map[string]string {
	out := make(map[string]string, len(deps))
	for name, constraint := range deps {
		out[name] = constraint
	}
	return out
}

var _ ports.MetadataFetcherPort = NpmRegistryAdapter{}
