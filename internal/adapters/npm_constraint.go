package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ZanzyTHEbar/errbuilder-go"
	npm "github.com/aquasecurity/go-npm-version/pkg"
	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/shared"
	"dependency-metrics/internal/types"
)

// commandRunner runs an external tool and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, shared.CommandError(output, err)
	}
	return output, nil
}

// NpmViewResolver asks the npm CLI which version a range selected at a past
// instant ("npm view <dep>@<range> version --json --before <iso>").
type NpmViewResolver struct {
	Binary string
	run    commandRunner
}

func NewNpmViewResolver(binary string) NpmViewResolver {
	if strings.TrimSpace(binary) == "" {
		binary = "npm"
	}
	return NpmViewResolver{Binary: binary, run: execRunner}
}

func (r NpmViewResolver) Resolve(ctx context.Context, dependency string, constraint string, before time.Time) (string, error) {
	spec := strings.TrimSpace(constraint)
	if spec == "" {
		spec = "*"
	}
	args := []string{
		"view",
		fmt.Sprintf("%s@%s", dependency, spec),
		"version",
		"--json",
		"--before",
		before.UTC().Format(time.RFC3339),
	}
	run := r.run
	if run == nil {
		run = execRunner
	}
	output, err := run(ctx, r.Binary, args...)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("npm view %s@%s failed", dependency, spec)).
			WithCause(err)
	}
	return parseNpmViewOutput(output)
}

// parseNpmViewOutput reads "npm view --json" output. A single match prints
// a string, several print an ascending list and the last one wins. No
// output means nothing matched.
func parseNpmViewOutput(output []byte) (string, error) {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return "", nil
	}
	var single string
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil {
		return single, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unexpected npm view output").
			WithCause(err)
	}
	if len(list) == 0 {
		return "", nil
	}
	return list[len(list)-1], nil
}

// NpmRegistryResolver evaluates npm ranges in-process against the registry
// history, considering only versions published at or before the instant.
type NpmRegistryResolver struct {
	fetcher ports.MetadataFetcherPort
	cache   *ResolverCache
}

func NewNpmRegistryResolver(fetcher ports.MetadataFetcherPort, cache *ResolverCache) NpmRegistryResolver {
	if cache == nil {
		cache = NewResolverCache()
	}
	return NpmRegistryResolver{fetcher: fetcher, cache: cache}
}

func (r NpmRegistryResolver) Resolve(ctx context.Context, dependency string, constraint string, before time.Time) (string, error) {
	meta, err := cachedMetadata(ctx, r.cache, r.fetcher, types.EcosystemNpm, dependency)
	if err != nil {
		return "", err
	}

	spec := strings.TrimSpace(constraint)
	anyVersion := spec == "" || spec == "*" || spec == "latest" || spec == "x"
	var constraints npm.Constraints
	if !anyVersion {
		constraints, err = npm.NewConstraints(spec)
		if err != nil {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid npm range %q for %s", spec, dependency)).
				WithCause(err)
		}
	}

	var best *semver.Version
	bestRaw := ""
	for version, data := range meta.Versions {
		published := parseTimeFlexible(data.Published)
		if published.IsZero() || published.After(before) {
			continue
		}
		parsed, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v"))
		if err != nil {
			log.Debug().Str("dependency", dependency).Str("version", version).Msg("skipping non-semver version")
			continue
		}
		if anyVersion {
			if parsed.Prerelease() != "" {
				continue
			}
		} else {
			candidate, err := npm.NewVersion(version)
			if err != nil || !constraints.Check(candidate) {
				continue
			}
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
			bestRaw = version
		}
	}
	return bestRaw, nil
}

// cachedMetadata fetches a package history once per cache.
func cachedMetadata(ctx context.Context, cache *ResolverCache, fetcher ports.MetadataFetcherPort, ecosystem types.Ecosystem, name string) (types.PackageMetadata, error) {
	if meta, ok := cache.Metadata(ecosystem, name); ok {
		return meta, nil
	}
	meta, err := fetcher.FetchPackage(ctx, name)
	if err != nil {
		return types.PackageMetadata{}, err
	}
	cache.PutMetadata(ecosystem, name, meta)
	return meta, nil
}

var (
	_ ports.ConstraintResolverPort = NpmViewResolver{}
	_ ports.ConstraintResolverPort = NpmRegistryResolver{}
)
