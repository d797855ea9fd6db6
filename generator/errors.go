package generator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every rejected-but-recoverable response.
	ErrValidation = errors.New("validation failed")
	// ErrResponseInvalid marks a response that could not be decoded into the
	// requested schema.
	ErrResponseInvalid = errors.New("response invalid")
	// ErrRetriesExhausted marks a step that failed validation on every attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrRateLimited is returned by LLM clients when the provider throttles.
	ErrRateLimited = errors.New("rate limited")
)

// LengthError: summary under the minimum token count.
type LengthError struct {
	Tokens int
	Min    int
	Target int
}

func (e *LengthError) Error() string {
	target := e.Target
	if target <= 0 {
		target = DefaultTargetWords
	}
	return fmt.Sprintf("The current summary is too short (%d tokens, at least %d required). Please make sure that you generate a new summary that is around %d words long.", e.Tokens, e.Min, target)
}

func (e *LengthError) Is(target error) bool { return target == ErrValidation }

// MissingEntityError: the rewrite did not name 1-3 new entities.
type MissingEntityError struct {
	Count int
}

func (e *MissingEntityError) Error() string {
	if e.Count == 0 {
		return "You must identify 1-3 informative Entities from the Article which are missing from the previously generated summary to be used in a new summary"
	}
	return fmt.Sprintf("You identified %d missing Entities. Identify only the 1-3 most informative Entities from the Article which are missing from the previously generated summary", e.Count)
}

func (e *MissingEntityError) Is(target error) bool { return target == ErrValidation }

// AbsentEntityError: entities of the previous summary were dropped.
type AbsentEntityError struct {
	Entities []string
}

func (e *AbsentEntityError) Error() string {
	return fmt.Sprintf("Do not omit the following Entities %s from the new summary", strings.Join(e.Entities, ","))
}

func (e *AbsentEntityError) Is(target error) bool { return target == ErrValidation }

// ResponseError wraps a decode failure of the raw model output.
type ResponseError struct {
	Err error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("The response was not a valid JSON object for the requested schema (%v). Respond with the JSON object only.", e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) Is(target error) bool { return target == ErrResponseInvalid }

// RetryError is the terminal failure of one chain step.
type RetryError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

func (e *RetryError) Is(target error) bool { return target == ErrRetriesExhausted }

// failureKinds lists the validation failure kinds carried by err, in check
// order. Used for metrics and logs.
func failureKinds(err error) []string {
	var kinds []string
	var re *ResponseError
	if errors.As(err, &re) {
		kinds = append(kinds, "response")
	}
	var le *LengthError
	if errors.As(err, &le) {
		kinds = append(kinds, "length")
	}
	var me *MissingEntityError
	if errors.As(err, &me) {
		kinds = append(kinds, "missing")
	}
	var ae *AbsentEntityError
	if errors.As(err, &ae) {
		kinds = append(kinds, "absent")
	}
	return kinds
}
