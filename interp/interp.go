// Package interp implements the suspendable tree-walking interpreter: a
// stack of execution frames advanced one step at a time, with request
// dispatch, condition/loop control flow, extraction, and continuous-run
// scheduling.
//
// Grounded on the teacher repo's own step-loop shape (runtime/executor.go's
// ExecuteSteps), generalized from the teacher's flat step list with
// retry/fallback/compensation into an explicit frame-stack walker that
// supports condition/loop nesting and single-step suspension, since
// FlowRunner's failure model is simpler (onFailure stop/continue only) but
// its control-flow model (branches, loops) is richer than the teacher's.
package interp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flowrunner/flow"
	"flowrunner/flowerr"
)

// Callbacks is the host UI interface the interpreter drives.
type Callbacks struct {
	OnStepStart      func(step flow.Step, path []flow.Point) int
	OnStepComplete   func(resultIndex int, step flow.Step, result flow.StepResult, ctx flow.RuntimeContext, path []flow.Point)
	OnFlowComplete   func(ctx flow.RuntimeContext, results []flow.StepResult)
	OnFlowStopped    func(ctx flow.RuntimeContext, results []flow.StepResult)
	OnError          func(err error)
	OnMessage        func(msg string)
	OnContextUpdate  func(ctx flow.RuntimeContext)
	OnIterationStart func(loopVarName string, item any, index, total int)
	UpdateRunnerUI   func()
}

func (c Callbacks) fireMessage(msg string) {
	if c.OnMessage != nil {
		c.OnMessage(msg)
	}
}

func (c Callbacks) fireError(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func (c Callbacks) fireContextUpdate(ctx flow.RuntimeContext) {
	if c.OnContextUpdate != nil {
		c.OnContextUpdate(ctx)
	}
}

func (c Callbacks) firePoke() {
	if c.UpdateRunnerUI != nil {
		c.UpdateRunnerUI()
	}
}

// Requester is the outbound HTTP dependency, satisfied by *restyDispatcher
// in production and fakeable in tests.
type Requester interface {
	Do(ctx context.Context, req RequestSpec) (ResponseSpec, error)
}

// Interpreter is the suspendable execution engine described in spec §4.6.
type Interpreter struct {
	cfg       *Config
	requester Requester
	callbacks Callbacks
	logger    *slog.Logger

	mu             sync.Mutex
	isRunning      bool
	isStepping     bool
	stopRequested  bool
	executionPath  []*flow.ExecutionFrame
	runtimeContext flow.RuntimeContext
	results        []flow.StepResult
	cancelCurrent  context.CancelFunc

	isContinuousModeActive   bool
	continuousRunTimer       *time.Timer
	currentFlowForContinuous *flow.Flow

	substCounter int
	now          func() int64
}

// New constructs an Interpreter.
func New(cfg *Config, requester Requester, callbacks Callbacks, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		cfg:       cfg,
		requester: requester,
		callbacks: callbacks,
		logger:    logger,
		now:       func() int64 { return time.Now().UnixNano() },
	}
}

// IsRunning reports whether a run is currently executing (not stepping).
func (ip *Interpreter) IsRunning() bool {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.isRunning
}

// IsStepping reports whether a single-step invocation is in flight.
func (ip *Interpreter) IsStepping() bool {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.isStepping
}

// Run executes f to completion (or until Stop is called). When continuous
// is true, the interpreter reschedules itself after each completed pass
// using cfg.ContinuousRunDelayMS until Stop is called.
func (ip *Interpreter) Run(f *flow.Flow, continuous bool) error {
	ip.mu.Lock()
	if ip.isRunning || ip.isStepping {
		ip.mu.Unlock()
		return flowerr.New(flowerr.KindModel, "ALREADY_RUNNING", "the interpreter is already running or stepping")
	}
	ip.isRunning = true
	ip.stopRequested = false
	if continuous {
		ip.isContinuousModeActive = true
		ip.currentFlowForContinuous = f
	}
	if len(ip.executionPath) == 0 {
		ip.runtimeContext = seedContext(f.StaticVars)
		ip.executionPath = []*flow.ExecutionFrame{{
			Steps:   f.Steps,
			Index:   0,
			Context: ip.runtimeContext,
			Type:    flow.FrameMain,
		}}
	}
	ip.mu.Unlock()

	ip.executeCurrentLevel(f)

	ip.mu.Lock()
	ip.isRunning = false
	stopped := ip.stopRequested
	continuousActive := ip.isContinuousModeActive
	ip.mu.Unlock()

	if stopped {
		ip.callbacks.OnFlowStopped(ip.runtimeContext, ip.results)
		return nil
	}

	if continuousActive {
		ip.scheduleContinuousIteration()
		return nil
	}

	if ip.callbacks.OnFlowComplete != nil {
		ip.callbacks.OnFlowComplete(ip.runtimeContext, ip.results)
	}
	return nil
}

func seedContext(staticVars map[string]any) flow.RuntimeContext {
	ctx := make(flow.RuntimeContext, len(staticVars))
	for k, v := range staticVars {
		ctx[k] = v
	}
	return ctx
}

func (ip *Interpreter) scheduleContinuousIteration() {
	delay := time.Duration(ip.cfg.ContinuousRunDelayMS) * time.Millisecond
	ip.logger.InfoContext(context.Background(), fmt.Sprintf("Scheduling next continuous-run iteration in %s", delay))
	ip.mu.Lock()
	ip.continuousRunTimer = time.AfterFunc(delay, func() {
		ip.mu.Lock()
		stop := ip.stopRequested
		f := ip.currentFlowForContinuous
		ip.mu.Unlock()
		if stop || f == nil {
			return
		}
		ip.logger.InfoContext(context.Background(), "Starting continuous-run iteration")
		ip.reset(f.StaticVars, true)
		_ = ip.Run(f, true)
	})
	ip.mu.Unlock()
}

// reset clears per-run state ahead of a new continuous-run iteration,
// preserving continuous-mode flags when preservingContinuous is true.
func (ip *Interpreter) reset(staticVars map[string]any, preservingContinuous bool) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.executionPath = nil
	ip.results = nil
	ip.runtimeContext = seedContext(staticVars)
	ip.stopRequested = false
	if !preservingContinuous {
		ip.isContinuousModeActive = false
		ip.currentFlowForContinuous = nil
	}
}

// Step executes exactly one step of f, lazily initializing the execution
// stack on first call.
func (ip *Interpreter) Step(f *flow.Flow) error {
	ip.mu.Lock()
	if ip.isRunning || ip.isStepping {
		ip.mu.Unlock()
		return flowerr.New(flowerr.KindModel, "ALREADY_RUNNING", "the interpreter is already running or stepping")
	}
	ip.isStepping = true
	if len(ip.executionPath) == 0 {
		ip.runtimeContext = seedContext(f.StaticVars)
		ip.executionPath = []*flow.ExecutionFrame{{
			Steps:   f.Steps,
			Index:   0,
			Context: ip.runtimeContext,
			Type:    flow.FrameMain,
		}}
	}
	ip.mu.Unlock()

	defer func() {
		ip.mu.Lock()
		ip.isStepping = false
		ip.mu.Unlock()
	}()

	ip.executeOneStep(f)
	return nil
}

// Stop requests cooperative cancellation: the running level loop checks
// stopRequested at its next checkpoint, any in-flight request is aborted
// via its context, and a pending continuous-run timer is cancelled. Stop is
// idempotent.
func (ip *Interpreter) Stop() {
	ip.logger.InfoContext(context.Background(), "Stop requested")
	ip.mu.Lock()
	ip.stopRequested = true
	if ip.cancelCurrent != nil {
		ip.cancelCurrent()
	}
	if ip.continuousRunTimer != nil {
		ip.continuousRunTimer.Stop()
	}
	ip.isContinuousModeActive = false
	ip.mu.Unlock()
}

// executeCurrentLevel drives the frame stack until it is empty or a stop
// has been requested, applying the inter-step delay between siblings.
func (ip *Interpreter) executeCurrentLevel(f *flow.Flow) {
	for {
		ip.mu.Lock()
		if ip.stopRequested || len(ip.executionPath) == 0 {
			ip.mu.Unlock()
			return
		}
		top := ip.executionPath[len(ip.executionPath)-1]
		if top.Index >= len(top.Steps) {
			ip.mu.Unlock()
			ip.popFrame()
			continue
		}
		step := top.Steps[top.Index]
		hasNextSibling := top.Index+1 < len(top.Steps)
		ip.mu.Unlock()

		ip.executeStep(f, top, step)

		top.Index++

		ip.mu.Lock()
		stopped := ip.stopRequested
		ip.mu.Unlock()
		if stopped {
			return
		}

		if hasNextSibling && ip.cfg.InterStepDelayMS > 0 {
			if !ip.sleep(time.Duration(ip.cfg.InterStepDelayMS) * time.Millisecond) {
				return
			}
		}
	}
}

// executeOneStep advances exactly one step for Step().
func (ip *Interpreter) executeOneStep(f *flow.Flow) {
	ip.mu.Lock()
	if len(ip.executionPath) == 0 {
		ip.mu.Unlock()
		return
	}
	top := ip.executionPath[len(ip.executionPath)-1]
	if top.Index >= len(top.Steps) {
		ip.mu.Unlock()
		ip.popFrame()
		return
	}
	step := top.Steps[top.Index]
	ip.mu.Unlock()

	ip.executeStep(f, top, step)
	top.Index++
}

// sleep blocks for d or returns early (false) if Stop is called during the
// wait.
func (ip *Interpreter) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case <-poll.C:
			ip.mu.Lock()
			stopped := ip.stopRequested
			ip.mu.Unlock()
			if stopped {
				return false
			}
		}
	}
}

// popFrame removes the top frame from the stack, applying the special loop
// pop semantics: a loop frame that has more items re-arms itself instead of
// popping.
func (ip *Interpreter) popFrame() {
	ip.mu.Lock()
	if len(ip.executionPath) == 0 {
		ip.mu.Unlock()
		return
	}
	top := ip.executionPath[len(ip.executionPath)-1]
	if top.Type == flow.FrameLoop {
		top.LoopItemIndex++
		if top.LoopItemIndex < len(top.LoopItems) {
			top.Index = 0
			ip.mu.Unlock()
			if ip.cfg.InterStepDelayMS > 0 {
				if !ip.sleep(time.Duration(ip.cfg.InterStepDelayMS) * time.Millisecond) {
					return
				}
			}
			ip.prepareLoopIterationContext(top)
			return
		}
		ip.mu.Unlock()
		ip.emitMarker("Loop End", top, flow.StatusSuccess, nil)
		ip.mu.Lock()
	}
	ip.executionPath = ip.executionPath[:len(ip.executionPath)-1]
	ip.mu.Unlock()
}

// currentPath reconstructs the ancestry path for callbacks from the frame
// stack, skipping the root main frame.
func (ip *Interpreter) currentPath() []flow.Point {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	var pts []flow.Point
	for _, f := range ip.executionPath {
		if f.ParentStepID == "" {
			continue
		}
		branch := flow.BranchMain
		switch f.Type {
		case flow.FrameThen:
			branch = flow.BranchThen
		case flow.FrameElse:
			branch = flow.BranchElse
		case flow.FrameLoop:
			branch = flow.BranchLoop
		}
		pts = append(pts, flow.Point{StepID: f.ParentStepID, Branch: branch})
	}
	return pts
}

// emitMarker records a synthetic result (Condition Result, Loop Start/
// Iteration/End) in-line with real step results, preserving log order.
func (ip *Interpreter) emitMarker(label string, frame *flow.ExecutionFrame, status flow.Status, output any) {
	marker := flow.Step{ID: frame.ParentStepID, Name: label}
	result := flow.StepResult{StepID: marker.ID, Status: status, Output: output, Marker: label}
	ip.logger.InfoContext(context.Background(), fmt.Sprintf("Marker: %s", label), "stepId", marker.ID, "status", status)
	idx := 0
	if ip.callbacks.OnStepStart != nil {
		idx = ip.callbacks.OnStepStart(marker, ip.currentPath())
	}
	ip.mu.Lock()
	ip.results = append(ip.results, result)
	ip.mu.Unlock()
	if ip.callbacks.OnStepComplete != nil {
		ip.callbacks.OnStepComplete(idx, marker, result, ip.runtimeContext, ip.currentPath())
	}
}

