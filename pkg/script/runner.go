package script

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/pocketcalc/pkg/session"
	"github.com/openfroyo/pocketcalc/pkg/telemetry"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int      `json:"index"`
	Keys     string   `json:"keys"`
	Display  string   `json:"display"`
	Memory   string   `json:"memory_indicator"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// Result is the outcome of one script.
type Result struct {
	Script   string        `json:"script"`
	Path     string        `json:"path,omitempty"`
	Passed   bool          `json:"passed"`
	Steps    []StepResult  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Failures returns the number of failed steps.
func (r *Result) Failures() int {
	n := 0
	for _, st := range r.Steps {
		if !st.Passed {
			n++
		}
	}
	return n
}

// Report aggregates the results of several scripts.
type Report struct {
	Results []*Result `json:"results"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
}

// OK reports whether every script passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Runner executes scripts, each on a fresh session.
type Runner struct {
	tel *telemetry.Telemetry
}

// NewRunner creates a runner. A nil tel disables instrumentation.
func NewRunner(tel *telemetry.Telemetry) *Runner {
	if tel == nil {
		tel = telemetry.NewNopTelemetry()
	}
	return &Runner{tel: tel}
}

// Run executes one script. Mismatches are reported in the result; an
// error is returned only when the script cannot be executed.
func (r *Runner) Run(ctx context.Context, s *Script) (*Result, error) {
	ctx = r.tel.WithContext(ctx)
	op := telemetry.StartOperation(ctx, "script.run",
		telemetry.AttrScriptName.String(s.Name),
		telemetry.AttrScriptPath.String(s.Path),
	)
	logger := op.Logger.WithScript(s.Name, s.Path)

	sess := session.New(op.Ctx, r.tel, nil, session.WithMemory(s.Memory))
	defer sess.Close()

	result := &Result{Script: s.Name, Path: s.Path, Passed: true}

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			op.End(err)
			return nil, err
		}

		if _, err := sess.PressKeys(op.Ctx, step.Keys); err != nil {
			err = fmt.Errorf("script %s step %d: %w", s.Name, i+1, err)
			op.End(err)
			return nil, err
		}

		snap := sess.Snapshot()
		sr := StepResult{
			Index:   i + 1,
			Keys:    step.Keys,
			Display: snap.Display,
			Memory:  snap.Memory,
			Passed:  true,
		}
		if want := step.Expect.Display; want != nil && *want != snap.Display {
			sr.Failures = append(sr.Failures, fmt.Sprintf("display = %q, want %q", snap.Display, *want))
		}
		if want := step.Expect.Memory; want != nil && *want != snap.Memory {
			sr.Failures = append(sr.Failures, fmt.Sprintf("memory = %q, want %q", snap.Memory, *want))
		}
		if len(sr.Failures) > 0 {
			sr.Passed = false
			result.Passed = false
		}
		result.Steps = append(result.Steps, sr)
	}

	result.Duration = op.Timer.Duration()

	status := "passed"
	if !result.Passed {
		status = "failed"
		logger.Zerolog().Warn().Int("failures", result.Failures()).Msg("Script failed")
	} else {
		logger.Debug("Script passed")
	}
	r.tel.Metrics.RecordScriptRun(status, result.Duration)
	if err := r.tel.Events.PublishScriptResult(s.Name, result.Passed, result.Failures(), result.Duration); err != nil {
		logger.WithError(err).Warn("script event dropped")
	}

	op.End(nil)
	return result, nil
}

// RunAll executes scripts in order and aggregates the results. It stops
// at the first script that cannot be executed.
func (r *Runner) RunAll(ctx context.Context, scripts []*Script) (*Report, error) {
	report := &Report{}
	for _, s := range scripts {
		res, err := r.Run(ctx, s)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report, nil
}
