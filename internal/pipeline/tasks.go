package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/logger"
	"github.com/elgendy/vsts-agent/internal/login"
	"github.com/elgendy/vsts-agent/internal/util"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

const (
	// ManifestFileName is the manifest inside <cache>/<name>/<version>/.
	ManifestFileName = "task.yaml"
	// IndexFileName records the latest version per task and major.
	IndexFileName = "index.yaml"
	// TaskDefinitionsPath lists the task definitions known to the server.
	TaskDefinitionsPath = "/_apis/distributedtask/tasks"
)

// TaskRef is a task reference of the form Name@Major.
type TaskRef struct {
	Name  string
	Major int
}

// ParseTaskRef parses "Name@Major".
func ParseTaskRef(s string) (TaskRef, error) {
	name, major, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || name == "" || major == "" {
		return TaskRef{}, fmt.Errorf("task '%s' must be written as Name@Major, e.g. Npm@1", s)
	}
	n, err := strconv.Atoi(major)
	if err != nil || n < 0 {
		return TaskRef{}, fmt.Errorf("task '%s' has an invalid major version '%s'", s, major)
	}
	return TaskRef{Name: name, Major: n}, nil
}

func (r TaskRef) String() string {
	return fmt.Sprintf("%s@%d", r.Name, r.Major)
}

func (r TaskRef) key() string {
	return strings.ToLower(r.Name)
}

// TaskInput declares one input of a task.
type TaskInput struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required,omitempty"`
	Default  string `yaml:"default,omitempty"`
}

// TaskExecution is how a task runs on this agent.
type TaskExecution struct {
	// Command is a shell command line, run from the task directory.
	Command string `yaml:"command"`
}

// TaskManifest is the task.yaml stored for one task version.
type TaskManifest struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Description string        `yaml:"description,omitempty"`
	Inputs      []TaskInput   `yaml:"inputs,omitempty"`
	Demands     []string      `yaml:"demands,omitempty"`
	Execution   TaskExecution `yaml:"execution"`

	// Dir is the directory the manifest was read from.
	Dir string `yaml:"-"`
}

// Major returns the major version, or -1 if the version is not semver.
func (m *TaskManifest) Major() int {
	v := canonical(m.Version)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(semver.Major(v), "v"))
	if err != nil {
		return -1
	}
	return n
}

// Input looks up a declared input by name, ignoring case.
func (m *TaskManifest) Input(name string) (TaskInput, bool) {
	for _, in := range m.Inputs {
		if strings.EqualFold(in.Name, name) {
			return in, true
		}
	}
	return TaskInput{}, false
}

// TaskIndex maps a lower-cased task name to its latest version per major.
type TaskIndex struct {
	Tasks map[string]map[int]string `yaml:"tasks"`
}

func (idx *TaskIndex) record(name, version string) {
	v := canonical(version)
	if v == "" {
		return
	}
	major, err := strconv.Atoi(strings.TrimPrefix(semver.Major(v), "v"))
	if err != nil {
		return
	}
	key := strings.ToLower(name)
	if idx.Tasks == nil {
		idx.Tasks = make(map[string]map[int]string)
	}
	if idx.Tasks[key] == nil {
		idx.Tasks[key] = make(map[int]string)
	}
	if cur, ok := idx.Tasks[key][major]; !ok || semver.Compare(v, canonical(cur)) > 0 {
		idx.Tasks[key][major] = version
	}
}

// Lookup returns the indexed version for ref.
func (idx *TaskIndex) Lookup(ref TaskRef) (string, bool) {
	v, ok := idx.Tasks[ref.key()][ref.Major]
	return v, ok
}

// canonical turns "1.2.3" into "v1.2.3", or "" when it isn't a version.
func canonical(version string) string {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// TaskStore is the on-disk task cache.
type TaskStore struct {
	dir string
	log logger.Logger

	mu sync.Mutex
}

// NewTaskStore creates a store rooted at dir. The directory is created on
// first write.
func NewTaskStore(dir string, log logger.Logger) *TaskStore {
	if log == nil {
		log = logger.Noop()
	}
	return &TaskStore{dir: dir, log: log}
}

// Dir returns the cache root.
func (s *TaskStore) Dir() string {
	return s.dir
}

// Put writes a manifest into the cache and records it in the index.
func (s *TaskStore) Put(m *TaskManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	if err := s.writeManifest(m); err != nil {
		return err
	}
	idx.record(m.Name, m.Version)
	return s.saveIndex(idx)
}

// Resolve finds the manifest for ref: through the index first, then by
// scanning the cache for the highest version with the right major.
func (s *TaskStore) Resolve(ref TaskRef) (*TaskManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	if version, ok := idx.Lookup(ref); ok {
		m, err := s.readManifest(filepath.Join(s.dir, ref.key(), version, ManifestFileName))
		if err == nil {
			return m, nil
		}
		s.log.Warn("index entry for %s is stale: %v", ref, err)
	}

	best, names, err := s.scan(ref)
	if err != nil {
		return nil, err
	}
	if best == nil {
		suggestion := "Run 'vsts-pi validate' while logged in to refresh the cache, or check the task name and major version"
		if similar := util.SuggestSimilar(ref.Name, names, 3); len(similar) > 0 && !strings.EqualFold(similar[0], ref.Name) {
			suggestion = "Did you mean " + strings.Join(similar, " or ") + "? " + suggestion
		}
		return nil, errors.New(errors.ErrTask,
			fmt.Sprintf("Task %s is not in the task cache", ref), suggestion)
	}
	return best, nil
}

// scan returns the best manifest for ref along with every task name in the
// cache.
func (s *TaskStore) scan(ref TaskRef) (*TaskManifest, []string, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return nil, nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(s.dir), "*/*/"+ManifestFileName)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.ErrTask,
			"Couldn't read the task cache at "+s.dir, "")
	}
	sort.Strings(matches)

	var (
		best  *TaskManifest
		names []string
	)
	for _, match := range matches {
		name := path.Dir(path.Dir(match))
		if len(names) == 0 || names[len(names)-1] != name {
			names = append(names, name)
		}
		if !strings.EqualFold(name, ref.Name) {
			continue
		}
		m, err := s.readManifest(filepath.Join(s.dir, filepath.FromSlash(match)))
		if err != nil {
			s.log.Warn("skipping %s: %v", match, err)
			continue
		}
		if m.Major() != ref.Major {
			continue
		}
		if best == nil || semver.Compare(canonical(m.Version), canonical(best.Version)) > 0 {
			best = m
		}
	}
	return best, names, nil
}

func (s *TaskStore) readManifest(file string) (*TaskManifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var m TaskManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTask,
			"Task manifest "+file+" is not valid YAML", "")
	}
	if m.Name == "" || canonical(m.Version) == "" {
		return nil, errors.New(errors.ErrTask,
			"Task manifest "+file+" needs a name and a semantic version", "")
	}
	m.Dir = filepath.Dir(file)
	return &m, nil
}

func (s *TaskStore) writeManifest(m *TaskManifest) error {
	if m.Name == "" || canonical(m.Version) == "" {
		return errors.New(errors.ErrTask,
			fmt.Sprintf("Task '%s' has no usable version '%s'", m.Name, m.Version), "")
	}
	if !cacheSafe(m.Name) || !cacheSafe(m.Version) {
		return errors.New(errors.ErrTask,
			fmt.Sprintf("Task '%s' version '%s' can't be stored in the task cache", m.Name, m.Version), "")
	}
	dir := filepath.Join(s.dir, strings.ToLower(m.Name), m.Version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrTask,
			"Couldn't create "+dir, "Check permissions on the task cache directory")
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTask, "Couldn't encode task "+m.Name, "")
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrTask,
			"Couldn't write task "+m.Name, "Check permissions on the task cache directory")
	}
	m.Dir = dir
	return nil
}

// cacheSafe reports whether elem stays a single directory under the cache.
func cacheSafe(elem string) bool {
	return elem != "" && elem != "." && !strings.Contains(elem, "..") &&
		!strings.ContainsAny(elem, `/\:`) && !filepath.IsAbs(elem)
}

// LoadIndex reads index.yaml. A missing index is empty.
func (s *TaskStore) LoadIndex() (*TaskIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIndex()
}

func (s *TaskStore) loadIndex() (*TaskIndex, error) {
	idx := &TaskIndex{Tasks: make(map[string]map[int]string)}
	data, err := os.ReadFile(filepath.Join(s.dir, IndexFileName))
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTask,
			"Couldn't read the task index", "")
	}
	if err := yaml.Unmarshal(data, idx); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTask,
			"Task index "+filepath.Join(s.dir, IndexFileName)+" is corrupt",
			"Delete it; it is rebuilt on the next online validate")
	}
	if idx.Tasks == nil {
		idx.Tasks = make(map[string]map[int]string)
	}
	return idx, nil
}

func (s *TaskStore) saveIndex(idx *TaskIndex) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrTask,
			"Couldn't create "+s.dir, "Check permissions on the task cache directory")
	}
	data, err := yaml.Marshal(idx)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTask, "Couldn't encode the task index", "")
	}
	file := filepath.Join(s.dir, IndexFileName)
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrTask, "Couldn't write the task index", "")
	}
	return os.Rename(tmp, file)
}

// taskDefinition is the subset of a server task definition the agent uses.
type taskDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     struct {
		Major int `json:"major"`
		Minor int `json:"minor"`
		Patch int `json:"patch"`
	} `json:"version"`
	Inputs []struct {
		Name         string `json:"name"`
		Required     bool   `json:"required"`
		DefaultValue string `json:"defaultValue"`
	} `json:"inputs"`
	Demands   []string `json:"demands"`
	Execution map[string]struct {
		Target         string `json:"target"`
		ArgumentFormat string `json:"argumentFormat"`
	} `json:"execution"`
}

// localHandlers are the execution handlers that map onto a shell command.
var localHandlers = []string{"Process", "ShellScript", "Bash"}

func (d *taskDefinition) manifest() *TaskManifest {
	m := &TaskManifest{
		Name:        d.Name,
		Version:     fmt.Sprintf("%d.%d.%d", d.Version.Major, d.Version.Minor, d.Version.Patch),
		Description: d.Description,
		Demands:     d.Demands,
	}
	for _, in := range d.Inputs {
		m.Inputs = append(m.Inputs, TaskInput{Name: in.Name, Required: in.Required, Default: in.DefaultValue})
	}
	for _, h := range localHandlers {
		if ex, ok := d.Execution[h]; ok && ex.Target != "" {
			m.Execution.Command = strings.TrimSpace(ex.Target + " " + ex.ArgumentFormat)
			break
		}
	}
	return m
}

// Refresh downloads the server's task definitions into the cache and
// returns how many were stored.
func (s *TaskStore) Refresh(ctx context.Context, client *http.Client, creds *login.Credentials) (int, error) {
	req, err := login.NewRequest(ctx, creds.URL, TaskDefinitionsPath, creds.Token)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrTask,
			"Couldn't download task definitions from "+creds.URL,
			"Check your network connection, or pass --offline to use the task cache")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, errors.New(errors.ErrAuth,
			fmt.Sprintf("Access denied listing tasks on %s (%s)", creds.URL, resp.Status),
			"Run 'vsts-pi login' again with a token that can read agent pools")
	case resp.StatusCode >= 300:
		return 0, errors.New(errors.ErrTask,
			fmt.Sprintf("Unexpected response listing tasks on %s: %s", creds.URL, resp.Status),
			"Pass --offline to use the task cache")
	}

	var body struct {
		Value []taskDefinition `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrTask,
			"Task definitions from "+creds.URL+" could not be parsed", "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return 0, err
	}
	stored := 0
	for i := range body.Value {
		m := body.Value[i].manifest()
		if err := s.writeManifest(m); err != nil {
			s.log.Warn("skipping task definition %q: %v", m.Name, err)
			continue
		}
		idx.record(m.Name, m.Version)
		stored++
	}
	if err := s.saveIndex(idx); err != nil {
		return stored, err
	}
	s.log.Info("refreshed %d task definitions from %s", stored, creds.URL)
	return stored, nil
}
