// Package capability checks task demands against what this machine offers:
// executables on PATH, environment variables, and a few agent facts such as
// Agent.OS.
package capability

import (
	"fmt"
	"regexp"
	"strings"
)

// validName matches demand names: alphanumeric, hyphens, underscores, periods, and plus.
// Examples: npm, python3, nvidia-smi, Agent.OS, g++
var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

// ValidName checks if name can be a capability name.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// Demand is one requirement a task places on the agent: either that a
// capability exists ("npm") or that it has a value ("Agent.OS -equals Linux").
type Demand struct {
	Name   string
	Value  string
	Equals bool
}

// ParseDemand parses "name" or "name -equals value".
func ParseDemand(s string) (Demand, error) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 1:
		if !ValidName(fields[0]) {
			return Demand{}, fmt.Errorf("demand '%s' is not a valid capability name", s)
		}
		return Demand{Name: fields[0]}, nil
	case len(fields) >= 3 && strings.EqualFold(fields[1], "-equals"):
		if !ValidName(fields[0]) {
			return Demand{}, fmt.Errorf("demand '%s' is not a valid capability name", s)
		}
		return Demand{Name: fields[0], Value: strings.Join(fields[2:], " "), Equals: true}, nil
	default:
		return Demand{}, fmt.Errorf("demand '%s' must be 'name' or 'name -equals value'", s)
	}
}

func (d Demand) String() string {
	if d.Equals {
		return d.Name + " -equals " + d.Value
	}
	return d.Name
}

// CheckResult represents the result of checking a single demand.
type CheckResult struct {
	Demand Demand
	// Satisfied is true if the capability exists (and matches, for -equals).
	Satisfied bool
	// Source is where the capability was found: a path, "env", or "agent".
	Source string
	// Actual is the capability's value for -equals demands.
	Actual string
}

// Merge combines demands from multiple sources (several tasks of one
// pipeline). Returns a deduplicated list preserving order of first occurrence.
func Merge(sources ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, source := range sources {
		for _, req := range source {
			req = strings.TrimSpace(req)
			if req != "" && !seen[req] {
				seen[req] = true
				result = append(result, req)
			}
		}
	}

	return result
}

// FilterMissing returns only the unsatisfied demands.
func FilterMissing(results []CheckResult) []CheckResult {
	var missing []CheckResult
	for _, r := range results {
		if !r.Satisfied {
			missing = append(missing, r)
		}
	}
	return missing
}

// FormatMissing creates a human-readable list of missing demands.
func FormatMissing(missing []CheckResult) string {
	if len(missing) == 0 {
		return ""
	}

	var parts []string
	for _, m := range missing {
		if m.Demand.Equals && m.Actual != "" {
			parts = append(parts, fmt.Sprintf("%s (have %s)", m.Demand, m.Actual))
		} else {
			parts = append(parts, m.Demand.String())
		}
	}
	return strings.Join(parts, ", ")
}
