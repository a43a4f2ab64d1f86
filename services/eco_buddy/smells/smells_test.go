// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package smells

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewID_Deterministic verifies the same inputs always produce the
// same id across calls.
func TestNewID_Deterministic(t *testing.T) {
	occ := Occurrence{StartLine: 12, StartCol: 4}

	a := NewID("src/a.py", RuleUseAGenerator, occ)
	b := NewID("src/a.py", RuleUseAGenerator, occ)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

// TestNewID_DistinguishesInputs verifies path, rule, and location all
// contribute to identity.
func TestNewID_DistinguishesInputs(t *testing.T) {
	base := NewID("src/a.py", RuleUseAGenerator, Occurrence{StartLine: 12, StartCol: 4})

	assert.NotEqual(t, base, NewID("src/b.py", RuleUseAGenerator, Occurrence{StartLine: 12, StartCol: 4}))
	assert.NotEqual(t, base, NewID("src/a.py", RuleLongLambda, Occurrence{StartLine: 12, StartCol: 4}))
	assert.NotEqual(t, base, NewID("src/a.py", RuleUseAGenerator, Occurrence{StartLine: 13, StartCol: 4}))
}

// TestDecodeRuleKind verifies the closed-set behavior.
func TestDecodeRuleKind(t *testing.T) {
	t.Run("known symbols resolve", func(t *testing.T) {
		kind, err := DecodeRuleKind("use-a-generator")
		require.NoError(t, err)
		assert.Equal(t, RuleUseAGenerator, kind)
	})

	t.Run("unknown symbol fails loudly", func(t *testing.T) {
		_, err := DecodeRuleKind("brand-new-rule")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownRule)
		assert.Contains(t, err.Error(), "brand-new-rule")
	})
}

// TestRuleKindJSON verifies symbol round-trip and rejection of unknown
// symbols at the decode boundary.
func TestRuleKindJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		data, err := json.Marshal(RuleStringConcatInLoop)
		require.NoError(t, err)
		assert.Equal(t, `"string-concat-in-loop"`, string(data))

		var kind RuleKind
		require.NoError(t, json.Unmarshal(data, &kind))
		assert.Equal(t, RuleStringConcatInLoop, kind)
	})

	t.Run("unknown symbol rejected", func(t *testing.T) {
		var kind RuleKind
		err := json.Unmarshal([]byte(`"mystery-rule"`), &kind)
		assert.ErrorIs(t, err, ErrUnknownRule)
	})

	t.Run("smell decode surfaces the rule error", func(t *testing.T) {
		var s Smell
		err := json.Unmarshal([]byte(`{"rule":"mystery-rule","message":"x"}`), &s)
		assert.ErrorIs(t, err, ErrUnknownRule)
	})
}

// TestNormalize verifies derived field population and the
// no-occurrence rejection.
func TestNormalize(t *testing.T) {
	s := Smell{
		Rule:        RuleCachedRepeatedCalls,
		Message:     "repeated call",
		Occurrences: []Occurrence{{StartLine: 3, StartCol: 1}, {StartLine: 9, StartCol: 1}},
	}
	require.NoError(t, Normalize(&s, "pkg/util.py"))
	assert.Equal(t, "pkg/util.py", s.Path)
	assert.Equal(t, NewID("pkg/util.py", RuleCachedRepeatedCalls, Occurrence{StartLine: 3, StartCol: 1}), s.ID)

	empty := Smell{Rule: RuleLongLambda}
	assert.ErrorIs(t, Normalize(&empty, "pkg/util.py"), ErrNoOccurrences)
}
