package capability

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Checker resolves capabilities on the local machine.
type Checker struct {
	cache    *Cache
	lookPath func(file string) (string, error)
	lookEnv  func(key string) (string, bool)
	facts    map[string]string
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) CheckerOption {
	return func(c *Checker) { c.lookPath = fn }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) CheckerOption {
	return func(c *Checker) { c.lookEnv = fn }
}

// WithFact adds or overrides an agent fact such as Agent.OS.
func WithFact(name, value string) CheckerOption {
	return func(c *Checker) { c.facts[strings.ToLower(name)] = value }
}

// NewChecker creates a checker backed by cache. A nil cache disables caching.
func NewChecker(cache *Cache, opts ...CheckerOption) *Checker {
	c := &Checker{
		cache:    cache,
		lookPath: exec.LookPath,
		lookEnv:  os.LookupEnv,
		facts: map[string]string{
			"agent.os":             agentOS(),
			"agent.osarchitecture": agentArch(),
		},
	}
	if host, err := os.Hostname(); err == nil {
		c.facts["agent.computername"] = host
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func agentOS() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows_NT"
	default:
		return runtime.GOOS
	}
}

func agentArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "X64"
	case "386":
		return "X86"
	case "arm64":
		return "ARM64"
	case "arm":
		return "ARM"
	default:
		return strings.ToUpper(runtime.GOARCH)
	}
}

// value finds a capability's value: agent facts first, then the environment
// (as written, then in NAME_WITH_UNDERSCORES form).
func (c *Checker) value(name string) (value, source string, ok bool) {
	if v, ok := c.facts[strings.ToLower(name)]; ok {
		return v, "agent", true
	}
	if v, ok := c.lookEnv(name); ok {
		return v, "env", true
	}
	envName := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))
	if v, ok := c.lookEnv(envName); ok {
		return v, "env", true
	}
	return "", "", false
}

// Check verifies a single demand.
func (c *Checker) Check(d Demand) CheckResult {
	result := CheckResult{Demand: d}

	if !ValidName(d.Name) {
		return result
	}

	if v, source, ok := c.value(d.Name); ok {
		result.Source = source
		result.Actual = v
		result.Satisfied = !d.Equals || strings.EqualFold(v, d.Value)
		return result
	}

	if d.Equals {
		return result
	}
	if path, err := c.lookPath(d.Name); err == nil {
		result.Satisfied = true
		result.Source = path
	}
	return result
}

// CheckAll checks every demand, using the cache and checking the rest in
// parallel. A malformed demand is returned as an error; unsatisfied demands
// are reported in the results.
func (c *Checker) CheckAll(demands []string) ([]CheckResult, error) {
	if len(demands) == 0 {
		return nil, nil
	}

	parsed := make([]Demand, len(demands))
	for i, s := range demands {
		d, err := ParseDemand(s)
		if err != nil {
			return nil, err
		}
		parsed[i] = d
	}

	results := make([]CheckResult, len(parsed))
	var toCheck []int // Indices of demands not in cache

	for i, d := range parsed {
		if c.cache != nil {
			if cached, ok := c.cache.Get(d.String()); ok {
				results[i] = cached
				continue
			}
		}
		toCheck = append(toCheck, i)
	}

	var wg sync.WaitGroup
	for _, idx := range toCheck {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Check(parsed[i])
		}(idx)
	}
	wg.Wait()

	if c.cache != nil {
		for _, i := range toCheck {
			c.cache.Set(parsed[i].String(), results[i])
		}
	}
	return results, nil
}
