package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/elgendy/vsts-agent/internal/capability"
	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/exec"
	"github.com/elgendy/vsts-agent/internal/lock"
	"github.com/elgendy/vsts-agent/internal/logger"
	"github.com/elgendy/vsts-agent/internal/login"
	"github.com/elgendy/vsts-agent/internal/output"
	"github.com/elgendy/vsts-agent/internal/settings"
	"github.com/elgendy/vsts-agent/internal/ui"
	"github.com/elgendy/vsts-agent/internal/util"
	"github.com/google/uuid"
)

// CredentialSource supplies the service login for online task resolution.
type CredentialSource interface {
	Load() (*login.Credentials, error)
	Client() *http.Client
}

// Runner implements the lint, validate, and run commands.
type Runner struct {
	out        io.Writer
	errOut     io.Writer
	display    *ui.StepDisplay
	tasks      *TaskStore
	creds      CredentialSource
	conditions *ConditionEvaluator
	checker    *capability.Checker
	lock       *lock.Config
	dir        string
	workDir    string
	log        logger.Logger
	newRunID   func() string
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithCredentials enables online task refresh.
func WithCredentials(c CredentialSource) Option {
	return func(r *Runner) { r.creds = c }
}

// WithWorkingDir sets the directory pipelines are found and run in.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithWorkDir sets the agent scratch root; each run gets a temp dir under it.
func WithWorkDir(dir string) Option {
	return func(r *Runner) { r.workDir = dir }
}

// WithErrorOutput sets where step stderr goes.
func WithErrorOutput(w io.Writer) Option {
	return func(r *Runner) { r.errOut = w }
}

// WithTiming toggles per-step durations.
func WithTiming(on bool) Option {
	return func(r *Runner) { r.display.SetTiming(on) }
}

// WithCapabilities sets the checker used for task demands.
func WithCapabilities(c *capability.Checker) Option {
	return func(r *Runner) { r.checker = c }
}

// WithLock sets the work directory lock settings. Nil disables locking.
func WithLock(cfg *lock.Config) Option {
	return func(r *Runner) { r.lock = cfg }
}

// WithLogger sets the trace logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithRunIDs replaces the uuid run ID generator.
func WithRunIDs(next func() string) Option {
	return func(r *Runner) { r.newRunID = next }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner writing progress to out.
func NewRunner(out io.Writer, tasks *TaskStore, opts ...Option) *Runner {
	r := &Runner{
		out:        out,
		errOut:     out,
		display:    ui.NewStepDisplay(out),
		tasks:      tasks,
		conditions: NewConditionEvaluator(),
		checker:    capability.NewChecker(capability.GlobalCache()),
		lock:       &lock.Config{},
		dir:        ".",
		workDir:    os.TempDir(),
		log:        logger.Noop(),
		newRunID:   func() string { return uuid.NewString() },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PlannedStep is a linted step with its task resolved.
type PlannedStep struct {
	*Step
	Index int
	Ref   TaskRef
	Task  *TaskManifest
}

// IsTask reports whether the step runs a task.
func (p *PlannedStep) IsTask() bool {
	return p.Task != nil
}

// Plan is a validated pipeline ready to run.
type Plan struct {
	Document *Document
	Steps    []PlannedStep
}

// Title names the pipeline for display.
func (p *Plan) Title() string {
	if p.Document.Name != "" {
		return p.Document.Name
	}
	return filepath.Base(p.Document.Path)
}

// Lint checks the pipeline file's structure without touching the task cache.
func (r *Runner) Lint(ctx context.Context, s *settings.CommandSettings) error {
	doc, err := r.lint(s)
	if err != nil {
		return err
	}
	r.ok("%s is valid (%d %s)", r.rel(doc.Path), len(doc.Steps), util.Pluralize(len(doc.Steps), "step", "steps"))
	return nil
}

// Validate lints the pipeline and resolves every task it references.
func (r *Runner) Validate(ctx context.Context, s *settings.CommandSettings) error {
	plan, err := r.Plan(ctx, s)
	if err != nil {
		return err
	}
	tasks := 0
	for i := range plan.Steps {
		if plan.Steps[i].IsTask() {
			tasks++
		}
	}
	r.ok("%s is valid (%d %s, %d %s resolved)", r.rel(plan.Document.Path),
		len(plan.Steps), util.Pluralize(len(plan.Steps), "step", "steps"),
		tasks, util.Pluralize(tasks, "task", "tasks"))
	return nil
}

// Plan lints and resolves the pipeline named by s.
func (r *Runner) Plan(ctx context.Context, s *settings.CommandSettings) (*Plan, error) {
	doc, err := r.lint(s)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Document: doc, Steps: make([]PlannedStep, len(doc.Steps))}
	for i := range doc.Steps {
		plan.Steps[i] = PlannedStep{Step: &doc.Steps[i], Index: i + 1}
	}

	if !hasTasks(doc) {
		return plan, nil
	}
	if !s.Offline {
		if err := r.refresh(ctx); err != nil {
			return nil, err
		}
	}

	issues := &IssueList{Path: doc.Path}
	for i := range plan.Steps {
		ps := &plan.Steps[i]
		if ps.Step.Task == "" {
			continue
		}
		ref, _ := ParseTaskRef(ps.Step.Task)
		ps.Ref = ref
		m, err := r.tasks.Resolve(ref)
		if err != nil {
			issues.add(ps.Line, "step %d: %s", ps.Index, errors.Summarize(err))
			continue
		}
		ps.Task = m
		checkInputs(issues, ps)
		r.checkDemands(issues, ps)
	}
	if err := issues.err(fmt.Sprintf("Pipeline %s has unresolved tasks", doc.Path),
		"Check task names and inputs against the task cache"); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *Runner) lint(s *settings.CommandSettings) (*Document, error) {
	path, err := Locate(s.Yaml, r.dir)
	if err != nil {
		return nil, err
	}
	r.log.Info("using pipeline %s", path)
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	if err := Lint(doc, r.conditions); err != nil {
		return nil, err
	}
	return doc, nil
}

// refresh updates the task cache from the service when logged in.
func (r *Runner) refresh(ctx context.Context) error {
	if r.creds == nil {
		return nil
	}
	creds, err := r.creds.Load()
	if stderrors.Is(err, login.ErrNotLoggedIn) {
		r.log.Info("not logged in, resolving tasks from the cache only")
		fmt.Fprintln(r.out, "Not logged in; resolving tasks from the local cache")
		return nil
	}
	if err != nil {
		return err
	}
	if !ui.IsTerminal(r.out) {
		_, err = r.tasks.Refresh(ctx, r.creds.Client(), creds)
		return err
	}

	spinner := ui.NewSpinner("Refreshing task definitions", r.out)
	spinner.Start()
	n, err := r.tasks.Refresh(ctx, r.creds.Client(), creds)
	if err != nil {
		spinner.Fail()
		return err
	}
	spinner.SetLabel(fmt.Sprintf("Refreshed %d task %s", n, util.Pluralize(n, "definition", "definitions")))
	spinner.Success()
	return nil
}

func hasTasks(doc *Document) bool {
	for i := range doc.Steps {
		if doc.Steps[i].Task != "" {
			return true
		}
	}
	return false
}

func checkInputs(issues *IssueList, ps *PlannedStep) {
	if ps.Task.Execution.Command == "" {
		issues.add(ps.Line, "step %d: task %s has no command this agent can run", ps.Index, ps.Ref)
	}
	for name := range ps.Step.Inputs {
		if _, ok := ps.Task.Input(name); !ok {
			issues.add(ps.Line, "step %d: task %s has no input '%s'", ps.Index, ps.Ref, name)
		}
	}
	for _, in := range ps.Task.Inputs {
		if !in.Required || in.Default != "" {
			continue
		}
		if v, ok := lookupFold(ps.Step.Inputs, in.Name); !ok || strings.TrimSpace(v) == "" {
			issues.add(ps.Line, "step %d: task %s requires input '%s'", ps.Index, ps.Ref, in.Name)
		}
	}
}

// checkDemands reports task demands this machine can't satisfy.
func (r *Runner) checkDemands(issues *IssueList, ps *PlannedStep) {
	results, err := r.checker.CheckAll(ps.Task.Demands)
	if err != nil {
		issues.add(ps.Line, "step %d: task %s: %v", ps.Index, ps.Ref, err)
		return
	}
	if missing := capability.FilterMissing(results); len(missing) > 0 {
		issues.add(ps.Line, "step %d: task %s demands %s", ps.Index, ps.Ref, capability.FormatMissing(missing))
	}
}

// pruneRunDirs removes run directories left behind by runs that never got to
// clean up, such as a run killed on its second cancel key. Only called with
// the work directory lock held, when no other run can own one.
func (r *Runner) pruneRunDirs() {
	entries, err := os.ReadDir(r.workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("couldn't list %s: %v", r.workDir, err)
		}
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		dir := filepath.Join(r.workDir, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warn("couldn't remove leftover run directory %s: %v", dir, err)
			continue
		}
		r.log.Info("removed leftover run directory %s", dir)
	}
}

// Run validates the pipeline and executes its steps in order.
func (r *Runner) Run(ctx context.Context, s *settings.CommandSettings) error {
	plan, err := r.Plan(ctx, s)
	if err != nil {
		return err
	}

	if r.lock != nil {
		l, err := lock.Acquire(ctx, r.workDir, *r.lock, plan.Document.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := l.Release(); err != nil {
				r.log.Warn("%v", errors.Summarize(err))
			}
		}()
		r.pruneRunDirs()
	}

	runID := r.newRunID()
	tempDir := filepath.Join(r.workDir, runID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrPipeline,
			"Couldn't create the run directory "+tempDir,
			"Check permissions on the agent work directory")
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			r.log.Warn("couldn't remove %s: %v", tempDir, err)
		}
	}()

	r.log.Info("run %s: %s, %d steps", runID, plan.Document.Path, len(plan.Steps))
	fmt.Fprintf(r.out, "Running %s\n\n", plan.Title())

	run := &execution{
		runner:  r,
		plan:    plan,
		runID:   runID,
		tempDir: tempDir,
		vars:    make(Variables, len(plan.Document.Variables)),
		hidden:  make(map[string]bool),
	}
	for k, v := range plan.Document.Variables {
		run.vars[k] = v
	}
	start := r.now()
	run.steps(ctx)

	summary := &ui.RunSummary{
		RunID:    runID,
		Pipeline: plan.Title(),
		Steps:    run.results,
		Duration: r.now().Sub(start),
	}
	r.display.Divider()
	fmt.Fprint(r.out, ui.RenderRunSummary(summary))

	switch {
	case run.status.Canceled:
		cause := context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
		return errors.WrapWithCode(cause, errors.ErrPipeline, "Pipeline canceled", "")
	case run.firstErr != nil:
		return errors.WrapWithCode(run.firstErr, errors.ErrPipeline,
			fmt.Sprintf("Pipeline failed at step '%s'", run.firstFailed),
			"See the step output above")
	}
	return nil
}

// execution is the state of one pipeline run.
type execution struct {
	runner  *Runner
	plan    *Plan
	runID   string
	tempDir string

	// vars starts as the document's variables; task.setvariable adds to it.
	vars    Variables
	secrets []string
	hidden  map[string]bool // secret variable names, kept out of the env
	path    []string

	status      JobStatus
	results     []ui.StepResult
	firstErr    error
	firstFailed string
}

// stepIssues is returned by a step that reported SucceededWithIssues.
type stepIssues struct {
	message string
}

func (s *stepIssues) Error() string {
	return s.message
}

func (e *execution) steps(ctx context.Context) {
	r := e.runner

	for i := range e.plan.Steps {
		ps := &e.plan.Steps[i]
		title := ps.Title()

		if ctx.Err() != nil {
			e.status.Canceled = true
		}
		if e.status.Canceled {
			e.record(title, ui.OutcomeNotStarted, 0, "")
			continue
		}
		if !ps.IsEnabled() {
			r.display.RenderSkipped(title, "disabled")
			e.record(title, ui.OutcomeSkipped, 0, "disabled")
			continue
		}

		cond := ps.ConditionOrDefault()
		run, err := r.conditions.Evaluate(cond, e.vars, e.status)
		if err != nil {
			e.fail(title, 0, errors.WrapWithCode(err, errors.ErrPipeline, "Condition failed to evaluate", ""))
			continue
		}
		if !run {
			r.display.RenderSkipped(title, "condition: "+cond)
			e.record(title, ui.OutcomeSkipped, 0, "condition: "+cond)
			continue
		}

		r.display.RenderStart(title)
		start := r.now()
		err = e.step(ctx, ps)
		elapsed := r.now().Sub(start)

		var issues *stepIssues
		switch {
		case err == nil:
			r.display.RenderSuccess(title, elapsed)
			e.record(title, ui.OutcomeSucceeded, elapsed, "")
		case stderrors.As(err, &issues):
			r.display.RenderIssues(title, elapsed, issues)
			e.record(title, ui.OutcomeIssues, elapsed, issues.message)
		case ctx.Err() != nil:
			e.status.Canceled = true
			r.display.RenderFailed(title, elapsed, stderrors.New("canceled"))
			e.record(title, ui.OutcomeCanceled, elapsed, "")
		case ps.ContinueOnError:
			r.log.Warn("step %d failed, continuing: %s", ps.Index, errors.Summarize(err))
			r.display.RenderIssues(title, elapsed, summaryError{err})
			e.record(title, ui.OutcomeIssues, elapsed, errors.Summarize(err))
		default:
			e.fail(title, elapsed, err)
		}
	}
}

func (e *execution) fail(title string, elapsed time.Duration, err error) {
	e.runner.log.Error("step '%s' failed: %s", title, errors.Summarize(err))
	e.runner.display.RenderFailed(title, elapsed, summaryError{err})
	e.record(title, ui.OutcomeFailed, elapsed, errors.Summarize(err))
	e.status.Failed = true
	if e.firstErr == nil {
		e.firstErr = err
		e.firstFailed = title
	}
}

func (e *execution) record(title string, outcome ui.StepOutcome, d time.Duration, msg string) {
	e.results = append(e.results, ui.StepResult{Name: title, Outcome: outcome, Duration: d, Message: msg})
}

// step runs one step to completion.
func (e *execution) step(ctx context.Context, ps *PlannedStep) error {
	r := e.runner
	vars := e.vars

	if ps.TimeoutInMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ps.TimeoutInMinutes)*time.Minute)
		defer cancel()
	}

	stream := output.NewStreamHandler(r.out, r.errOut)
	stream.SetFormatter(output.NewStepFormatter())
	for _, secret := range e.secrets {
		stream.Mask(secret)
	}
	var result string
	stream.OnCommand(func(c output.Command) {
		if c.Name() == "task.complete" {
			result = c.Property("result")
			if c.Data != "" {
				result += ": " + c.Data
			}
			return
		}
		e.command(ps, stream, c)
	})

	env := e.env(ps)
	cmd := exec.Command{
		Env:    env,
		Stdout: stream.Stdout(),
		Stderr: stream.Stderr(),
	}
	if ps.IsTask() {
		cmd.Script = ps.Task.Execution.Command
		cmd.Dir = ps.Task.Dir
	} else {
		cmd.Script = expandMacros(ps.Script, vars)
		cmd.Dir = r.dir
		if ps.WorkingDirectory != "" {
			cmd.Dir = expandMacros(ps.WorkingDirectory, vars)
			if !filepath.IsAbs(cmd.Dir) {
				cmd.Dir = filepath.Join(r.dir, cmd.Dir)
			}
		}
		r.display.CommandPrompt(e.mask(cmd.Script))
	}

	r.log.Debug("step %d in %s: %s", ps.Index, cmd.Dir, e.mask(cmd.Script))
	res, err := exec.ExecuteLocal(ctx, cmd)
	if flushErr := stream.Flush(); flushErr != nil {
		r.log.Warn("couldn't write step output: %v", flushErr)
	}
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New(errors.ErrExec,
				fmt.Sprintf("timed out after %d %s", ps.TimeoutInMinutes, util.Pluralize(ps.TimeoutInMinutes, "minute", "minutes")),
				"Raise timeoutInMinutes or speed the step up")
		}
		return err
	}
	if res.ExitCode == 0 {
		return completion(result)
	}

	if hint := exec.HandleExecError(cmd.Script, res.StderrTail, res.ExitCode); hint != nil {
		return hint
	}
	return errors.NewExitError(res.ExitCode)
}

// mask hides secret variable values in s.
func (e *execution) mask(s string) string {
	for _, secret := range e.secrets {
		s = strings.ReplaceAll(s, secret, "***")
	}
	return s
}

// completion maps a task.complete result onto the step outcome.
func completion(result string) error {
	if result == "" {
		return nil
	}
	status, detail, _ := strings.Cut(result, ": ")
	switch {
	case strings.EqualFold(status, "Succeeded"):
		return nil
	case strings.EqualFold(status, "SucceededWithIssues"):
		if detail == "" {
			detail = "step reported issues"
		}
		return &stepIssues{message: detail}
	default:
		msg := "step reported result " + status
		if detail != "" {
			msg += ": " + detail
		}
		return errors.New(errors.ErrExec, msg, "")
	}
}

// command applies a logging command written by the running step.
func (e *execution) command(ps *PlannedStep, stream *output.StreamHandler, c output.Command) {
	r := e.runner
	switch c.Name() {
	case "task.setvariable":
		name := c.Property("variable")
		if name == "" {
			r.log.Warn("step %d: task.setvariable without a variable name", ps.Index)
			return
		}
		e.vars[name] = c.Data
		if strings.EqualFold(c.Property("issecret"), "true") && c.Data != "" {
			e.secrets = append(e.secrets, c.Data)
			e.hidden[strings.ToLower(name)] = true
			stream.Mask(c.Data)
			if red, ok := r.log.(interface{ Redact(string) }); ok {
				red.Redact(c.Data)
			}
		}
		r.log.Debug("step %d set variable %s", ps.Index, name)
	case "task.prependpath":
		if c.Data != "" {
			e.path = append([]string{c.Data}, e.path...)
		}
	case "task.logissue":
		r.display.LogIssue(strings.EqualFold(c.Property("type"), "error"), c.Data)
	default:
		r.log.Warn("step %d: unsupported logging command %s", ps.Index, c.Name())
	}
}

// env builds the environment for a step: pipeline variables, agent
// variables, step env, and task inputs.
func (e *execution) env(ps *PlannedStep) map[string]string {
	r := e.runner
	vars := e.vars
	env := make(map[string]string, len(vars)+8)

	for k, v := range vars {
		if !e.hidden[strings.ToLower(k)] {
			env[envName(k)] = v
		}
	}

	env["VSTS_PI_RUN_ID"] = e.runID
	env["AGENT_TEMPDIRECTORY"] = e.tempDir
	env["AGENT_JOBSTATUS"] = e.jobStatus()
	env["BUILD_SOURCESDIRECTORY"] = r.dir
	env["SYSTEM_DEFAULTWORKINGDIRECTORY"] = r.dir
	env["SYSTEM_PIPELINENAME"] = e.plan.Title()
	if len(e.path) > 0 {
		env["PATH"] = strings.Join(append(append([]string{}, e.path...), os.Getenv("PATH")), string(os.PathListSeparator))
	}

	for k, v := range ps.Env {
		env[k] = expandMacros(v, vars)
	}

	if ps.IsTask() {
		for _, in := range ps.Task.Inputs {
			value := in.Default
			if v, ok := lookupFold(ps.Inputs, in.Name); ok {
				value = v
			}
			env["INPUT_"+envName(in.Name)] = expandMacros(value, vars)
		}
		env["TASK_DIRECTORY"] = ps.Task.Dir
	}
	return env
}

func (e *execution) jobStatus() string {
	switch {
	case e.status.Canceled:
		return "Canceled"
	case e.status.Failed:
		return "Failed"
	case len(e.results) > 0 && e.results[len(e.results)-1].Outcome == ui.OutcomeIssues:
		return "SucceededWithIssues"
	}
	return "Succeeded"
}

var envReplacer = strings.NewReplacer(".", "_", " ", "_", "-", "_")

// envName maps a variable name to its environment form: build.config
// becomes BUILD_CONFIG.
func envName(name string) string {
	return strings.ToUpper(envReplacer.Replace(name))
}

var macroPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_.\-]+)\)`)

// expandMacros replaces $(name) with the value of variable name. Unknown
// macros are left as written.
func expandMacros(s string, vars map[string]string) string {
	if !strings.Contains(s, "$(") {
		return s
	}
	return macroPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := lookupFold(vars, name); ok {
			return v
		}
		return m
	})
}

func lookupFold(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (r *Runner) ok(format string, args ...any) {
	style := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	fmt.Fprintf(r.out, "%s %s\n", style.Render(ui.SymbolSuccess), fmt.Sprintf(format, args...))
}

func (r *Runner) rel(path string) string {
	if rel, err := filepath.Rel(r.dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// summaryError renders any error on one line.
type summaryError struct{ err error }

func (s summaryError) Error() string { return errors.Summarize(s.err) }
