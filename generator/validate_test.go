package generator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInitial(t *testing.T) {
	v := NewValidator(75, 80)

	ok := &InitialSummary{Summary: "  " + FillerSummary + "  "}
	require.NoError(t, v.CheckInitial(ok))
	assert.Equal(t, FillerSummary, ok.Summary)

	err := v.CheckInitial(&InitialSummary{Summary: "Far too short."})
	require.Error(t, err)
	var le *LengthError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 75, le.Min)
	assert.Less(t, le.Tokens, 75)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "around 80 words")
}

func TestCheckRewrite(t *testing.T) {
	v := NewValidator(75, 80)

	tests := []struct {
		name      string
		in        RewrittenSummary
		tracked   []string
		wantKinds []string
	}{
		{
			name: "valid",
			in:   RewrittenSummary{Summary: longSummary("Alpha"), Missing: []string{"Beta"}},
		},
		{
			name:      "no missing entities",
			in:        RewrittenSummary{Summary: longSummary(), Missing: nil},
			wantKinds: []string{"missing"},
		},
		{
			name:      "blank missing entities are dropped",
			in:        RewrittenSummary{Summary: longSummary(), Missing: []string{" ", ""}},
			wantKinds: []string{"missing"},
		},
		{
			name:      "too many missing entities",
			in:        RewrittenSummary{Summary: longSummary(), Missing: []string{"A", "B", "C", "D"}},
			wantKinds: []string{"missing"},
		},
		{
			name:      "model reports absent entity",
			in:        RewrittenSummary{Summary: longSummary(), Missing: []string{"Beta"}, Absent: []string{"Alpha"}},
			wantKinds: []string{"absent"},
		},
		{
			name:      "tracked entity dropped",
			in:        RewrittenSummary{Summary: longSummary("Gamma"), Missing: []string{"Beta"}},
			tracked:   []string{"Gamma", "Alpha"},
			wantKinds: []string{"absent"},
		},
		{
			name:      "all failures in check order",
			in:        RewrittenSummary{Summary: "Short.", Absent: []string{"Alpha"}},
			wantKinds: []string{"length", "missing", "absent"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.in
			err := v.CheckRewrite(&r, tt.tracked)
			if len(tt.wantKinds) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.wantKinds, failureKinds(err))
		})
	}
}

func TestCheckRewriteMessages(t *testing.T) {
	v := NewValidator(75, 80)
	r := RewrittenSummary{Summary: "Short.", Absent: []string{"Alpha", "Beta"}}
	err := v.CheckRewrite(&r, nil)
	require.Error(t, err)
	msg := err.Error()

	length := strings.Index(msg, "too short")
	missing := strings.Index(msg, "You must identify 1-3 informative Entities")
	absent := strings.Index(msg, "Do not omit the following Entities Alpha,Beta")
	require.True(t, length >= 0 && missing >= 0 && absent >= 0, msg)
	assert.Less(t, length, missing)
	assert.Less(t, missing, absent)

	var ae *AbsentEntityError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, []string{"Alpha", "Beta"}, ae.Entities)
}

func TestCheckRewriteTrackedMatchIgnoresCase(t *testing.T) {
	v := NewValidator(75, 80)
	r := RewrittenSummary{Summary: longSummary("the european union"), Missing: []string{"Beta"}}
	require.NoError(t, v.CheckRewrite(&r, []string{"European Union"}))
	assert.Empty(t, r.Absent)
}

func TestDecode(t *testing.T) {
	var s InitialSummary
	require.NoError(t, decode("```json\n{\"summary\":\"x\"}\n```", &s))
	assert.Equal(t, "x", s.Summary)

	err := decode("not json", &s)
	assert.ErrorIs(t, err, ErrResponseInvalid)
	err = decode("   ", &s)
	assert.ErrorIs(t, err, ErrResponseInvalid)
}

func TestNewValidatorRegistersMinTokens(t *testing.T) {
	var v *Validator
	require.NotPanics(t, func() { v = NewValidator(0, 80) })
	assert.Equal(t, DefaultMinTokens, v.MinTokens())
	assert.Error(t, v.validate.Var("short text", "mintokens"))
	assert.NoError(t, v.validate.Var(FillerSummary, "mintokens"))
}
