// Package pipeline lints, validates, and runs YAML pipeline files on the
// local machine.
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/elgendy/vsts-agent/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultCondition applies to steps without a condition.
const DefaultCondition = "succeeded()"

// Document is a parsed pipeline file.
type Document struct {
	Name      string    `yaml:"name"`
	Variables Variables `yaml:"variables"`
	Steps     []Step    `yaml:"steps"`

	// Path is the file the document was read from.
	Path string `yaml:"-"`
}

// Step is one entry of the steps list. Exactly one of Script and Task is set.
type Step struct {
	Script           string            `yaml:"script"`
	Task             string            `yaml:"task"`
	Name             string            `yaml:"name"`
	DisplayName      string            `yaml:"displayName"`
	Inputs           map[string]string `yaml:"inputs"`
	Env              map[string]string `yaml:"env"`
	Condition        string            `yaml:"condition"`
	ContinueOnError  bool              `yaml:"continueOnError"`
	WorkingDirectory string            `yaml:"workingDirectory"`
	TimeoutInMinutes int               `yaml:"timeoutInMinutes"`
	Enabled          *bool             `yaml:"enabled"`

	// Line is the step's line in the source file.
	Line int `yaml:"-"`
}

// IsEnabled reports whether the step should be considered at all.
func (s *Step) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Title is the label shown while the step runs.
func (s *Step) Title() string {
	switch {
	case s.DisplayName != "":
		return s.DisplayName
	case s.Name != "":
		return s.Name
	case s.Task != "":
		return s.Task
	}
	first, _, _ := strings.Cut(strings.TrimSpace(s.Script), "\n")
	if len(first) > 50 {
		first = first[:47] + "..."
	}
	return first
}

// ConditionOrDefault returns the step condition, defaulting to succeeded().
func (s *Step) ConditionOrDefault() string {
	if c := strings.TrimSpace(s.Condition); c != "" {
		return c
	}
	return DefaultCondition
}

// Variables are the pipeline-level name/value pairs. Both the mapping form
// and the list-of-{name, value} form are accepted.
type Variables map[string]string

// UnmarshalYAML accepts a mapping or a sequence of {name, value} pairs.
func (v *Variables) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		m := map[string]string{}
		if err := node.Decode(&m); err != nil {
			return err
		}
		*v = m
		return nil
	case yaml.SequenceNode:
		var list []struct {
			Name  string `yaml:"name"`
			Value string `yaml:"value"`
		}
		if err := node.Decode(&list); err != nil {
			return err
		}
		m := make(map[string]string, len(list))
		for _, item := range list {
			if item.Name == "" {
				return fmt.Errorf("line %d: variable without a name", node.Line)
			}
			m[item.Name] = item.Value
		}
		*v = m
		return nil
	default:
		return fmt.Errorf("line %d: variables must be a mapping or a list of name/value pairs", node.Line)
	}
}

// Issue is one problem found in a pipeline file.
type Issue struct {
	Line    int
	Message string
}

// IssueList is every problem found in a file, in file order.
type IssueList struct {
	Path   string
	Issues []Issue
}

func (l *IssueList) add(line int, format string, args ...any) {
	l.Issues = append(l.Issues, Issue{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (l *IssueList) Error() string {
	parts := make([]string, len(l.Issues))
	for i, is := range l.Issues {
		if is.Line > 0 {
			parts[i] = fmt.Sprintf("%s:%d: %s", l.Path, is.Line, is.Message)
		} else {
			parts[i] = fmt.Sprintf("%s: %s", l.Path, is.Message)
		}
	}
	return strings.Join(parts, "; ")
}

func (l *IssueList) err(message, suggestion string) error {
	if len(l.Issues) == 0 {
		return nil
	}
	return errors.WrapWithCode(l, errors.ErrPipeline, message, suggestion)
}

// LoadDocument reads and parses a pipeline file without linting it.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrPipeline,
			"Couldn't open pipeline file "+path,
			"Check the path passed to --yaml")
	}
	defer f.Close()
	return ParseDocument(f, path)
}

// ParseDocument decodes a pipeline strictly: unknown keys are errors.
func ParseDocument(r io.Reader, path string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrPipeline,
			"Couldn't read pipeline file "+path, "")
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrPipeline,
				path+" is empty",
				"Add a steps list to the pipeline")
		}
		return nil, errors.WrapWithCode(err, errors.ErrPipeline,
			path+" is not a valid pipeline",
			"Fix the YAML at the reported line")
	}
	doc.Path = path

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err == nil {
		for i, line := range stepLines(&root) {
			if i < len(doc.Steps) {
				doc.Steps[i].Line = line
			}
		}
	}
	return &doc, nil
}

// stepLines returns the line of each item of the top-level steps list.
func stepLines(root *yaml.Node) []int {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != "steps" || m.Content[i+1].Kind != yaml.SequenceNode {
			continue
		}
		var lines []int
		for _, item := range m.Content[i+1].Content {
			lines = append(lines, item.Line)
		}
		return lines
	}
	return nil
}

var stepNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Lint checks the structure of a parsed document. It reports every problem
// at once.
func Lint(doc *Document, conditions *ConditionEvaluator) error {
	issues := &IssueList{Path: doc.Path}

	if len(doc.Steps) == 0 {
		issues.add(0, "no steps defined")
	}

	names := make(map[string]int)
	for i := range doc.Steps {
		st := &doc.Steps[i]
		n := i + 1

		hasScript := strings.TrimSpace(st.Script) != ""
		hasTask := strings.TrimSpace(st.Task) != ""
		switch {
		case hasScript && hasTask:
			issues.add(st.Line, "step %d has both script and task", n)
		case !hasScript && !hasTask:
			issues.add(st.Line, "step %d needs a script or a task", n)
		}

		if hasTask {
			if _, err := ParseTaskRef(st.Task); err != nil {
				issues.add(st.Line, "step %d: %v", n, err)
			}
		} else if len(st.Inputs) > 0 {
			issues.add(st.Line, "step %d: inputs are only valid on task steps", n)
		}

		if st.Name != "" {
			if !stepNamePattern.MatchString(st.Name) {
				issues.add(st.Line, "step %d: name '%s' must start with a letter or _ and contain only letters, digits, and _", n, st.Name)
			} else if prev, dup := names[st.Name]; dup {
				issues.add(st.Line, "step %d: name '%s' is already used by step %d", n, st.Name, prev)
			} else {
				names[st.Name] = n
			}
		}

		if st.TimeoutInMinutes < 0 {
			issues.add(st.Line, "step %d: timeoutInMinutes cannot be negative", n)
		}

		if err := conditions.Compile(st.ConditionOrDefault()); err != nil {
			issues.add(st.Line, "step %d: invalid condition: %v", n, err)
		}
	}

	return issues.err(fmt.Sprintf("Pipeline %s is invalid", doc.Path), "Fix the problems listed above")
}
