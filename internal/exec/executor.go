package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/elgendy/vsts-agent/internal/errors"
)

// exitCommandNotFound is the POSIX shell status for an unknown command.
const exitCommandNotFound = 127

// missingToolPattern recognizes one shell's way of saying a program is
// missing. Patterns with anyExit also match tools that wrap the lookup
// (make, env shebangs) and exit with their own status.
type missingToolPattern struct {
	re      *regexp.Regexp
	anyExit bool
}

var missingToolPatterns = []missingToolPattern{
	{re: regexp.MustCompile(`(?i)make: (\S+): No such file or directory`), anyExit: true},
	{re: regexp.MustCompile(`(?i)env: '?([^\s':]+)'?: No such file or directory`), anyExit: true},
	{re: regexp.MustCompile(`(?i)/bin/(?:ba)?sh: (?:line \d+: |\d+: )?(\S+): (?:command )?not found`), anyExit: true},
	{re: regexp.MustCompile(`(?i)'(\S+)' is not recognized`), anyExit: true},
	{re: regexp.MustCompile(`(?i)zsh: command not found: (\S+)`)},
	{re: regexp.MustCompile(`(?i)bash: (?:line \d+: )?(\S+): command not found`)},
	{re: regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`)},
	{re: regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`)},
	{re: regexp.MustCompile(`(?i)(\S+): (?:command )?not found`)},
}

// MissingTool reports whether a step failed because a program it runs is not
// installed, and names the program when stderr says which one. Exit status
// 127 is always treated as a missing tool.
func MissingTool(stderr string, exitCode int) (string, bool) {
	for _, p := range missingToolPatterns {
		if !p.anyExit && exitCode != exitCommandNotFound {
			continue
		}
		if m := p.re.FindStringSubmatch(stderr); len(m) > 1 {
			return strings.TrimSuffix(m[1], ":"), true
		}
	}
	return "", exitCode == exitCommandNotFound
}

// HandleExecError turns a failed step whose stderr shows a missing program
// into an EXEC error with a fix-it hint. It returns nil for other failures.
func HandleExecError(script, stderr string, exitCode int) error {
	tool, missing := MissingTool(stderr, exitCode)
	if !missing {
		return nil
	}
	if tool == "" {
		tool = "command"
		if fields := strings.Fields(script); len(fields) > 0 {
			tool = fields[0]
		}
	}

	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' not found in PATH", tool),
		fmt.Sprintf(`Install '%s' on this agent, then check that a non-interactive shell finds it:
   sh -c "command -v %s"
If it lives outside PATH, have an earlier step print
   ##vso[task.prependpath]/path/to/dir
and list '%s' under the task's demands so validate catches it next time.`, tool, tool, tool))
}
