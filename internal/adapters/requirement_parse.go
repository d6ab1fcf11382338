package adapters

import (
	"regexp"
	"strings"
)

var requirementName = regexp.MustCompile(`^\s*([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*`)
var extraMarker = regexp.MustCompile(`\bextra\s*==`)

// specOps lists PEP 440 comparison operators. Longer tokens precede the
// shorter ones they start with.
var specOps = []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"}

// parseRequirement splits one requires_dist entry into a distribution name
// and its specifier. Requirements that only apply to an extra, and
// requirements that themselves request extras, are dropped (ok is false).
// Other environment markers are discarded. A missing specifier becomes "*".
func parseRequirement(raw string) (string, string, bool) {
	body := raw
	if idx := strings.Index(body, ";"); idx >= 0 {
		if extraMarker.MatchString(body[idx+1:]) {
			return "", "", false
		}
		body = body[:idx]
	}
	match := requirementName.FindStringSubmatch(body)
	if match == nil {
		return "", "", false
	}
	name := match[1]
	rest := strings.TrimSpace(body[len(match[0]):])
	if strings.HasPrefix(rest, "[") {
		return "", "", false
	}
	if strings.HasPrefix(rest, "@") {
		// Direct URL reference; there is no version range to resolve.
		return name, "*", true
	}
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")"))
	if rest == "" {
		return name, "*", true
	}
	if !hasSpecOp(rest) {
		return "", "", false
	}
	return name, strings.Join(strings.Fields(rest), ""), true
}

func hasSpecOp(spec string) bool {
	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		found := false
		for _, op := range specOps {
			if strings.HasPrefix(clause, op) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// parseRequiresDist maps every usable requirement to its specifier. Markers
// are stripped, so a name listed twice takes its last specifier.
func parseRequiresDist(entries []string) map[string]string {
	deps := map[string]string{}
	for _, entry := range entries {
		name, spec, ok := parseRequirement(entry)
		if !ok {
			continue
		}
		deps[name] = spec
	}
	return deps
}
