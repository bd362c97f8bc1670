// Package script evaluates the optional JavaScript result expression attached
// to a job. Expressions run in a fresh goja runtime with the job bound as `job`.
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/me/gosched/pkg/model"
)

// Compile parses src and reports syntax errors without running it.
// An empty script is valid.
func Compile(src string) error {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	if _, err := goja.Compile("job-script", src, false); err != nil {
		return fmt.Errorf("compile script: %w", err)
	}
	return nil
}

// Evaluate runs src against j and returns its value as a string. An empty
// script, undefined and null all yield "". The runtime is interrupted when
// ctx is cancelled.
func Evaluate(ctx context.Context, src string, j *model.Job) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	prog, err := goja.Compile("job-script", src, false)
	if err != nil {
		return "", fmt.Errorf("compile script: %w", err)
	}

	vm := goja.New()
	if err := vm.Set("job", jobObject(j)); err != nil {
		return "", fmt.Errorf("set job: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	val, err := vm.RunProgram(prog)
	if err != nil {
		if ie, ok := err.(*goja.InterruptedError); ok {
			if cause, ok := ie.Value().(error); ok {
				return "", cause
			}
		}
		return "", fmt.Errorf("JavaScript error: %w", err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", nil
	}
	return val.String(), nil
}

func jobObject(j *model.Job) map[string]any {
	return map[string]any{
		"id":             j.ID,
		"name":           j.Name,
		"description":    j.Description,
		"priority":       j.Priority,
		"execution_time": j.ExecutionTime,
		"algorithm":      string(j.Algorithm),
	}
}
