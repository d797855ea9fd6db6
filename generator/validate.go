package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"chain_of_density/textstats"
)

const (
	DefaultMinTokens   = 75
	DefaultTargetWords = 80
)

// Validator checks decoded responses against the structural constraints of
// each schema.
type Validator struct {
	validate  *validator.Validate
	minTokens int
	target    int
	count     func(string) int
}

// NewValidator builds a Validator requiring at least minTokens tokens per
// summary. target is the word count quoted back to the model on failure.
func NewValidator(minTokens, target int) *Validator {
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}
	v := &Validator{
		validate:  validator.New(),
		minTokens: minTokens,
		target:    target,
		count:     textstats.CountTokens,
	}
	if err := v.validate.RegisterValidation("mintokens", v.hasMinTokens); err != nil {
		panic(fmt.Sprintf("register mintokens validation: %v", err))
	}
	return v
}

func (v *Validator) hasMinTokens(fl validator.FieldLevel) bool {
	return v.count(fl.Field().String()) >= v.minTokens
}

// MinTokens reports the configured threshold.
func (v *Validator) MinTokens() int { return v.minTokens }

// CheckInitial validates the first summary.
func (v *Validator) CheckInitial(s *InitialSummary) error {
	s.Summary = strings.TrimSpace(s.Summary)
	if err := v.validate.Struct(s); err != nil {
		return v.translate(err, s.Summary, nil)
	}
	return nil
}

// CheckRewrite validates a rewrite. tracked lists entities known to be in the
// previous summary; any of them missing from the new text is added to Absent
// before the checks run.
func (v *Validator) CheckRewrite(r *RewrittenSummary, tracked []string) error {
	r.normalize()
	for _, e := range tracked {
		if !textstats.Contains(r.Summary, e) {
			r.Absent = append(r.Absent, e)
		}
	}
	r.Absent = cleanEntities(r.Absent)
	if err := v.validate.Struct(r); err != nil {
		return v.translate(err, r.Summary, r)
	}
	return nil
}

// translate maps validator field errors to the typed errors, joined in check
// order: length, missing, absent.
func (v *Validator) translate(err error, summary string, r *RewrittenSummary) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var length, missing, absent error
	for _, fe := range fieldErrs {
		switch fe.StructField() {
		case "Summary":
			length = &LengthError{Tokens: v.count(summary), Min: v.minTokens, Target: v.target}
		case "Missing":
			if r != nil {
				missing = &MissingEntityError{Count: len(r.Missing)}
			}
		case "Absent":
			if r != nil {
				absent = &AbsentEntityError{Entities: r.Absent}
			}
		}
	}
	if joined := errors.Join(length, missing, absent); joined != nil {
		return joined
	}
	return err
}

// decode parses raw model output into out. Code fences around the object are
// tolerated.
func decode(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if s == "" {
		return &ResponseError{Err: errors.New("empty response")}
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return &ResponseError{Err: err}
	}
	return nil
}
