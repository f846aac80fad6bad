package interp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"flowrunner/flow"
	"flowrunner/flow/condition"
	"flowrunner/flow/path"
	"flowrunner/flow/substitute"
	"flowrunner/flowerr"
)

// executeStep dispatches on step.Kind, recording an onStepStart/onStepComplete
// pair and pushing a child frame for Condition/Loop steps.
func (ip *Interpreter) executeStep(f *flow.Flow, frame *flow.ExecutionFrame, step flow.Step) {
	switch step.Kind {
	case flow.KindRequest:
		ip.executeRequestStep(f, frame, step)
	case flow.KindCondition:
		ip.executeConditionStep(frame, step)
	case flow.KindLoop:
		ip.executeLoopStep(frame, step)
	default:
		ip.recordStep(step, flow.StepResult{
			StepID: step.ID,
			Status: flow.StatusError,
			Error:  fmt.Sprintf("unknown step type %q", step.Kind),
		})
		ip.stopNow()
	}
}

// recordStep fires onStepStart/onStepComplete for a real (non-marker) step
// result.
func (ip *Interpreter) recordStep(step flow.Step, result flow.StepResult) {
	idx := 0
	p := ip.currentPath()
	label := step.Name
	if result.Marker != "" {
		label = result.Marker
	}
	ip.logger.InfoContext(context.Background(), fmt.Sprintf("Step started: %s", label), "stepId", step.ID)
	if ip.callbacks.OnStepStart != nil {
		idx = ip.callbacks.OnStepStart(step, p)
	}
	ip.mu.Lock()
	ip.results = append(ip.results, result)
	ctx := ip.runtimeContext
	ip.mu.Unlock()
	if ip.callbacks.OnStepComplete != nil {
		ip.callbacks.OnStepComplete(idx, step, result, ctx, p)
	}
	if result.Status == flow.StatusError {
		ip.logger.ErrorContext(context.Background(), fmt.Sprintf("Step failed: %s", label), "stepId", step.ID, "error", result.Error)
	} else {
		ip.logger.InfoContext(context.Background(), fmt.Sprintf("Step completed: %s", label), "stepId", step.ID, "status", result.Status)
	}
	ip.callbacks.firePoke()
}

func (ip *Interpreter) stopNow() {
	ip.mu.Lock()
	ip.stopRequested = true
	ip.mu.Unlock()
}

// executeRequestStep substitutes variables, constructs and sends the HTTP
// request, classifies the result, and runs extraction.
func (ip *Interpreter) executeRequestStep(f *flow.Flow, frame *flow.ExecutionFrame, step flow.Step) {
	ctx := frame.Context

	res := substitute.Substitute(step, ctx, ip.now, &ip.substCounter)
	processed := res.Step

	headers := mergeHeaders(f.Headers, processed.Headers)

	var bodyStr string
	if processed.RawBodyWithMarkers != nil && methodAllowsBody(processed.Method) {
		raw, err := json.Marshal(processed.RawBodyWithMarkers)
		if err != nil {
			ip.failStep(step, flowerr.Wrap(flowerr.KindSubstitution, "STRINGIFY_FAILED", "failed to stringify request body", err))
			return
		}
		spliced := substitute.SpliceUnquoted(string(raw), res.UnquotedPlaceholders)
		contentType := headerValue(headers, "Content-Type")
		if contentType == "" {
			contentType = "application/json"
			headers["Content-Type"] = contentType
		}
		if strings.Contains(contentType, "application/json") {
			var reparsed any
			if err := json.Unmarshal([]byte(spliced), &reparsed); err != nil {
				ip.failStep(step, flowerr.Wrap(flowerr.KindSubstitution, "BODY_INVALID_JSON", "spliced request body is not valid JSON", err))
				return
			}
		}
		bodyStr = spliced
	}

	timeout := time.Duration(ip.cfg.StepTimeoutSeconds) * time.Second
	reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
	ip.mu.Lock()
	ip.cancelCurrent = cancel
	ip.mu.Unlock()
	defer func() {
		ip.mu.Lock()
		ip.cancelCurrent = nil
		ip.mu.Unlock()
		cancel()
	}()

	resp, err := ip.requester.Do(reqCtx, RequestSpec{
		Method:  processed.Method,
		URL:     processed.URL,
		Headers: headers,
		Body:    bodyStr,
	})
	if err != nil {
		message := classifyRequestError(reqCtx, err)
		ip.mu.Lock()
		stoppedByUser := ip.stopRequested
		ip.mu.Unlock()
		status := flow.StatusError
		if stoppedByUser && reqCtx.Err() == context.Canceled {
			status = flow.StatusStopped
		}
		result := flow.StepResult{StepID: step.ID, Status: status, Error: message}
		ip.recordStep(step, result)
		if status != flow.StatusStopped && processed.OnFailure != flow.OnFailureContinue {
			ip.stopNow()
		}
		return
	}

	if resp.Warning != "" {
		ip.callbacks.fireMessage(resp.Warning)
	}

	output := map[string]any{
		"status":  resp.Status,
		"headers": toAnyMap(resp.Headers),
		"body":    resp.Body,
	}

	status := flow.StatusSuccess
	if resp.Status < 200 || resp.Status >= 300 {
		if processed.OnFailure == flow.OnFailureContinue {
			status = flow.StatusSuccess
		} else {
			status = flow.StatusError
		}
	}

	failures, extracted := ip.runExtraction(step.Extract, output)

	result := flow.StepResult{
		StepID:             step.ID,
		Status:             status,
		Output:             output,
		ExtractionFailures: failures,
		ExtractedValues:    extracted,
	}
	ip.recordStep(step, result)

	if status == flow.StatusError && processed.OnFailure != flow.OnFailureContinue {
		ip.stopNow()
	}
}

// methodAllowsBody reports whether method permits a request body per
// spec §4.6. GET and HEAD (and an unspecified method, which defaults to GET)
// never carry a body, regardless of whether the step has one configured.
func methodAllowsBody(method string) bool {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "", "GET", "HEAD":
		return false
	default:
		return true
	}
}

func headerValue(headers map[string]string, key string) string {
	lower := strings.ToLower(key)
	for k, v := range headers {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return ""
}

func mergeHeaders(global, local map[string]string) map[string]string {
	out := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// classifyRequestError produces a user-facing message distinguishing
// user-stop, timeout, DNS, and connection-refused failures.
func classifyRequestError(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "request timed out after " + ctx.Err().Error()
	}
	if ctx.Err() == context.Canceled {
		return "request was cancelled"
	}
	var dnsErr *net.DNSError
	if ok := asDNSError(err, &dnsErr); ok {
		return fmt.Sprintf("could not resolve host: %s", dnsErr.Name)
	}
	if opErr, ok := asOpError(err); ok && opErr.Op == "dial" {
		return fmt.Sprintf("connection failed: %s", opErr.Err)
	}
	return err.Error()
}

func asDNSError(err error, target **net.DNSError) bool {
	for err != nil {
		if d, ok := err.(*net.DNSError); ok {
			*target = d
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func asOpError(err error) (*net.OpError, bool) {
	for err != nil {
		if o, ok := err.(*net.OpError); ok {
			return o, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

func (ip *Interpreter) failStep(step flow.Step, err *flowerr.Error) {
	result := flow.StepResult{StepID: step.ID, Status: flow.StatusError, Error: err.Message}
	ip.recordStep(step, result)
	ip.logger.ErrorContext(context.Background(), fmt.Sprintf("Step %s aborted the run", step.Name), "stepId", step.ID, "error", err.Message)
	ip.callbacks.fireError(err)
	ip.stopNow()
}

// runExtraction resolves each {varName: path} pair against output per the
// extraction path rules, recording failures and updating the current
// frame's context in place.
func (ip *Interpreter) runExtraction(extract map[string]string, output map[string]any) ([]flow.ExtractionFailure, map[string]any) {
	if len(extract) == 0 {
		return nil, nil
	}
	var failures []flow.ExtractionFailure
	extracted := map[string]any{}
	changed := false

	ip.mu.Lock()
	top := ip.executionPath[len(ip.executionPath)-1]
	ip.mu.Unlock()

	for varName, p := range extract {
		value, ok := evaluateExtractionPath(output, p)
		if !ok {
			failures = append(failures, flow.ExtractionFailure{VarName: varName, Path: p, Reason: "path evaluated to undefined"})
			continue
		}
		top.Context[varName] = value
		extracted[varName] = value
		changed = true
	}
	if changed {
		ip.callbacks.fireContextUpdate(top.Context)
	}
	return failures, extracted
}

// evaluateExtractionPath implements the special extraction keywords
// (.status, $status, $headers, $body, $header.<name>) plus the
// body-first, whole-output-fallback rule per spec §4.6/§9 open question (a).
func evaluateExtractionPath(output map[string]any, p string) (any, bool) {
	trimmed := strings.TrimSpace(p)
	switch {
	case trimmed == ".status" || trimmed == "$status":
		return output["status"], true
	case trimmed == "$headers":
		return output["headers"], true
	case trimmed == "$body":
		return output["body"], true
	case strings.HasPrefix(trimmed, "$header."):
		name := strings.TrimPrefix(trimmed, "$header.")
		headers, _ := output["headers"].(map[string]any)
		target := strings.ToLower(name)
		for k, v := range headers {
			if strings.ToLower(k) == target {
				return v, true
			}
		}
		return nil, false
	}

	if v, ok := path.Evaluate(output["body"], trimmed); ok {
		return v, true
	}
	if strings.HasPrefix(trimmed, "response.") {
		return path.Evaluate(output, strings.TrimPrefix(trimmed, "response."))
	}
	return nil, false
}

// executeConditionStep evaluates the condition, emits its synthetic marker,
// and pushes the chosen branch as a new frame.
func (ip *Interpreter) executeConditionStep(frame *flow.ExecutionFrame, step flow.Step) {
	ctx := frame.Context

	res := substitute.Substitute(step, ctx, ip.now, &ip.substCounter)

	matched, err := condition.Evaluate(res.Step.ConditionData, ctx)
	if err != nil {
		ip.failStep(step, flowerr.Wrap(flowerr.KindCondition, "EVAL_FAILED", err.Error(), err))
		return
	}

	branchName := "Else"
	branchSteps := step.ElseSteps
	frameType := flow.FrameElse
	if matched {
		branchName = "Then"
		branchSteps = step.ThenSteps
		frameType = flow.FrameThen
	}

	result := flow.StepResult{StepID: step.ID, Status: flow.StatusSuccess, Output: map[string]any{"branch": branchName}, Marker: "Condition Result"}
	ip.recordStep(step, result)

	ip.mu.Lock()
	ip.executionPath = append(ip.executionPath, &flow.ExecutionFrame{
		Steps:        branchSteps,
		Index:        0,
		Context:      ctx.Clone(),
		Type:         frameType,
		ParentStepID: step.ID,
	})
	ip.mu.Unlock()
}

// executeLoopStep evaluates source, emits the Loop Start marker, and pushes
// a loop frame primed for its first iteration.
func (ip *Interpreter) executeLoopStep(frame *flow.ExecutionFrame, step flow.Step) {
	ctx := frame.Context

	res := substitute.Substitute(step, ctx, ip.now, &ip.substCounter)
	source := strings.TrimSpace(res.Step.Source)
	source = strings.TrimPrefix(source, "{{")
	source = strings.TrimSuffix(source, "}}")
	source = strings.TrimSpace(source)

	value, ok := path.Evaluate(map[string]any(ctx), source)
	if !ok || value == nil {
		ip.callbacks.fireMessage(fmt.Sprintf("loop source %q resolved to no value; treating as empty sequence", step.Source))
		value = []any{}
	}

	items, ok := value.([]any)
	if !ok {
		ip.failStep(step, flowerr.New(flowerr.KindLoop, "SOURCE_NOT_ARRAY", fmt.Sprintf("loop source %q did not resolve to an array", step.Source)))
		return
	}

	varName := step.LoopVariable
	if varName == "" {
		varName = "item"
	}

	result := flow.StepResult{StepID: step.ID, Status: flow.StatusSuccess, Output: map[string]any{"count": len(items)}, Marker: "Loop Start"}
	ip.recordStep(step, result)

	loopFrame := &flow.ExecutionFrame{
		Steps:         step.LoopSteps,
		Index:         0,
		Context:       ctx,
		Type:          flow.FrameLoop,
		ParentStepID:  step.ID,
		LoopItems:     items,
		LoopItemIndex: 0,
		LoopVarName:   varName,
	}
	ip.mu.Lock()
	ip.executionPath = append(ip.executionPath, loopFrame)
	ip.mu.Unlock()

	if len(items) > 0 {
		ip.prepareLoopIterationContext(loopFrame)
	}
}

// prepareLoopIterationContext sets the loop variable in the loop frame's
// context, emits a per-iteration marker, and fires onContextUpdate.
func (ip *Interpreter) prepareLoopIterationContext(frame *flow.ExecutionFrame) {
	item := frame.LoopItems[frame.LoopItemIndex]
	frame.Context[frame.LoopVarName] = item

	ip.logger.InfoContext(context.Background(), fmt.Sprintf("Loop iteration %d/%d", frame.LoopItemIndex+1, len(frame.LoopItems)), "loopVar", frame.LoopVarName)

	if ip.callbacks.OnIterationStart != nil {
		ip.callbacks.OnIterationStart(frame.LoopVarName, item, frame.LoopItemIndex, len(frame.LoopItems))
	}
	ip.callbacks.fireContextUpdate(frame.Context)

	label := fmt.Sprintf("Iteration %d/%d", frame.LoopItemIndex+1, len(frame.LoopItems))
	result := flow.StepResult{StepID: frame.ParentStepID, Status: flow.StatusSuccess, Marker: label}
	idx := 0
	if ip.callbacks.OnStepStart != nil {
		idx = ip.callbacks.OnStepStart(flow.Step{ID: frame.ParentStepID, Name: label}, ip.currentPath())
	}
	ip.mu.Lock()
	ip.results = append(ip.results, result)
	ip.mu.Unlock()
	if ip.callbacks.OnStepComplete != nil {
		ip.callbacks.OnStepComplete(idx, flow.Step{ID: frame.ParentStepID, Name: label}, result, frame.Context, ip.currentPath())
	}
}
