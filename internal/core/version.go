package core

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"dependency-metrics/internal/types"
)

// ErrVersionOrdering marks failures to order a set of versions. Callers use
// it to tell a broken ordering apart from a missing answer.
var ErrVersionOrdering = errors.New("version ordering failed")

// VersionOrdering compares versions with ecosystem rules. npm uses strict
// semantic versioning; pypi uses PEP 440. Parsed values are memoized and the
// ordering is safe for concurrent use.
type VersionOrdering struct {
	ecosystem types.Ecosystem
	mu        sync.RWMutex
	semver    map[string]*semver.Version
	pep       map[string]pep440.Version
}

func NewVersionOrdering(ecosystem types.Ecosystem) *VersionOrdering {
	return &VersionOrdering{
		ecosystem: ecosystem,
		semver:    map[string]*semver.Version{},
		pep:       map[string]pep440.Version{},
	}
}

func (o *VersionOrdering) Ecosystem() types.Ecosystem {
	return o.ecosystem
}

// semverVersion parses strictly after dropping a leading "v".
func (o *VersionOrdering) semverVersion(value string) (*semver.Version, error) {
	o.mu.RLock()
	parsed, ok := o.semver[value]
	o.mu.RUnlock()
	if ok {
		return parsed, nil
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "v")
	parsed, err := semver.StrictNewVersion(trimmed)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.semver[value] = parsed
	o.mu.Unlock()
	return parsed, nil
}

func (o *VersionOrdering) pepVersion(value string) (pep440.Version, error) {
	o.mu.RLock()
	parsed, ok := o.pep[value]
	o.mu.RUnlock()
	if ok {
		return parsed, nil
	}
	parsed, err := pep440.Parse(strings.TrimSpace(value))
	if err != nil {
		return pep440.Version{}, err
	}
	o.mu.Lock()
	o.pep[value] = parsed
	o.mu.Unlock()
	return parsed, nil
}

// Valid reports whether value parses under the ecosystem rules.
func (o *VersionOrdering) Valid(value string) bool {
	switch o.ecosystem {
	case types.EcosystemNpm:
		_, err := o.semverVersion(value)
		return err == nil
	case types.EcosystemPyPI:
		_, err := o.pepVersion(value)
		return err == nil
	default:
		return false
	}
}

// Compare returns -1, 0 or 1. A parse error is never hidden
// behind 0.
func (o *VersionOrdering) Compare(a string, b string) (int, error) {
	switch o.ecosystem {
	case types.EcosystemNpm:
		v1, err := o.semverVersion(a)
		if err != nil {
			return 0, err
		}
		v2, err := o.semverVersion(b)
		if err != nil {
			return 0, err
		}
		return v1.Compare(v2), nil
	case types.EcosystemPyPI:
		v1, err := o.pepVersion(a)
		if err != nil {
			return 0, err
		}
		v2, err := o.pepVersion(b)
		if err != nil {
			return 0, err
		}
		return v1.Compare(v2), nil
	default:
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported ecosystem %q", o.ecosystem))
	}
}

// Highest returns the maximum of candidates. For npm, identifiers that are
// not strict semver are dropped from candidacy. For pypi any unparsable
// candidate fails the whole ordering. An empty candidate set yields "".
func (o *VersionOrdering) Highest(candidates []string) (string, error) {
	var usable []string
	for _, candidate := range candidates {
		if o.ecosystem == types.EcosystemNpm && !o.Valid(candidate) {
			continue
		}
		usable = append(usable, candidate)
	}
	if len(usable) == 0 {
		return "", nil
	}
	sorted, err := o.Sort(usable)
	if err != nil {
		return "", err
	}
	return sorted[len(sorted)-1], nil
}

// Sort returns an ascending copy of versions. The first comparison error
// aborts the sort.
func (o *VersionOrdering) Sort(versions []string) ([]string, error) {
	out := append([]string(nil), versions...)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		cmp, err := o.Compare(out[i], out[j])
		if err != nil {
			sortErr = err
			return false
		}
		return cmp < 0
	})
	if sortErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrVersionOrdering, sortErr)
	}
	return out, nil
}

var twoComponent = regexp.MustCompile(`^\d+\.\d*$`)

// NormalizeVersion pads vulnerability-table versions to three components:
// "0" and bare majors gain ".0.0", "major.minor" gains ".0". Anything else
// is returned unchanged.
func NormalizeVersion(version string) string {
	switch {
	case version == "0":
		return "0.0.0"
	case strings.Count(version, ".") == 0:
		return version + ".0.0"
	case twoComponent.MatchString(version):
		return version + ".0"
	default:
		return version
	}
}

// lenientCompare orders vulnerability boundaries. npm boundaries are coerced
// by Masterminds' lenient parser since advisory data is not always strict.
func (o *VersionOrdering) lenientCompare(a string, b string) (int, error) {
	if o.ecosystem != types.EcosystemNpm {
		return o.Compare(a, b)
	}
	v1, err := semver.NewVersion(strings.TrimSpace(a))
	if err != nil {
		return 0, err
	}
	v2, err := semver.NewVersion(strings.TrimSpace(b))
	if err != nil {
		return 0, err
	}
	return v1.Compare(v2), nil
}
