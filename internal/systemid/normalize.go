package systemid

import "strings"

// Normalize canonicalizes system names and study aliases.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	if canonical, ok := normalizeKnownAlias(normalized); ok {
		return canonical
	}
	return normalized
}

func normalizeKnownAlias(normalized string) (string, bool) {
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalSystemName(candidate); ok {
			return canonical, true
		}
	}
	return "", false
}

func aliasCandidates(normalized string) []string {
	candidate := strings.TrimPrefix(normalized, "system-")
	if candidate == normalized {
		candidate = strings.TrimPrefix(candidate, "contactnets-")
	}
	candidate = strings.Trim(candidate, "-")

	candidates := []string{normalized}
	if candidate != "" && candidate != normalized {
		candidates = append(candidates, candidate)
	}

	trimmedCandidate := trimSourceSuffix(candidate)
	if trimmedCandidate != "" && trimmedCandidate != candidate {
		candidates = append(candidates, trimmedCandidate)
	}

	trimmedNormalized := trimSourceSuffix(normalized)
	if trimmedNormalized != "" &&
		trimmedNormalized != normalized &&
		trimmedNormalized != candidate &&
		trimmedNormalized != trimmedCandidate {
		candidates = append(candidates, trimmedNormalized)
	}
	return candidates
}

// trimSourceSuffix drops trajectory-source qualifiers used by study sweeps.
func trimSourceSuffix(value string) string {
	switch {
	case strings.HasSuffix(value, "-real"):
		return strings.TrimSuffix(value, "-real")
	case strings.HasSuffix(value, "-sim"):
		return strings.TrimSuffix(value, "-sim")
	case strings.HasSuffix(value, "-vortex"):
		return strings.TrimSuffix(value, "-vortex")
	default:
		return value
	}
}

func canonicalSystemName(alias string) (string, bool) {
	switch alias {
	case "cube":
		return "cube", true
	case "elbow":
		return "elbow", true
	case "asymmetric":
		return "asymmetric", true
	}

	compact := strings.ReplaceAll(alias, "-", "")
	switch compact {
	case "cube", "sc":
		return "cube", true
	case "elbow", "se":
		return "elbow", true
	case "asymmetric", "asym", "sa":
		return "asymmetric", true
	default:
		return "", false
	}
}
