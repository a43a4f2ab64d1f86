// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package smells defines the code smell data model shared by the cache,
// the session controller, and the backend client.
//
// A Smell is an externally computed finding; this client never runs
// detection logic itself. Rule kinds form a closed set so that an
// unrecognized symbol coming back from the backend fails loudly at the
// JSON boundary instead of falling through a default branch.
package smells

import (
	"encoding/json"
	"fmt"
)

// RuleKind identifies the detection rule that produced a smell.
//
// The set is closed: DecodeRuleKind rejects symbols outside it with
// ErrUnknownRule.
type RuleKind int

const (
	// RuleUnknown is the zero value; it never round-trips through JSON.
	RuleUnknown RuleKind = iota

	// RuleUseAGenerator flags list comprehensions that should be generators.
	RuleUseAGenerator

	// RuleLongLambda flags lambda expressions above the length threshold.
	RuleLongLambda

	// RuleLongElementChain flags deeply chained element accesses.
	RuleLongElementChain

	// RuleLongMessageChain flags deeply chained method calls.
	RuleLongMessageChain

	// RuleMemberIgnoringMethod flags methods that never touch self.
	RuleMemberIgnoringMethod

	// RuleCachedRepeatedCalls flags repeated identical calls worth caching.
	RuleCachedRepeatedCalls

	// RuleStringConcatInLoop flags string concatenation inside loops.
	RuleStringConcatInLoop
)

// ruleSymbols maps rule kinds to the backend's wire symbols.
var ruleSymbols = map[RuleKind]string{
	RuleUseAGenerator:        "use-a-generator",
	RuleLongLambda:           "long-lambda-expression",
	RuleLongElementChain:     "long-element-chain",
	RuleLongMessageChain:     "long-message-chain",
	RuleMemberIgnoringMethod: "member-ignoring-method",
	RuleCachedRepeatedCalls:  "cached-repeated-calls",
	RuleStringConcatInLoop:   "string-concat-in-loop",
}

var symbolRules = func() map[string]RuleKind {
	m := make(map[string]RuleKind, len(ruleSymbols))
	for kind, symbol := range ruleSymbols {
		m[symbol] = kind
	}
	return m
}()

// AllRules returns every known rule kind in declaration order.
func AllRules() []RuleKind {
	return []RuleKind{
		RuleUseAGenerator,
		RuleLongLambda,
		RuleLongElementChain,
		RuleLongMessageChain,
		RuleMemberIgnoringMethod,
		RuleCachedRepeatedCalls,
		RuleStringConcatInLoop,
	}
}

// Symbol returns the backend wire symbol for the rule kind, or "unknown".
func (r RuleKind) Symbol() string {
	if s, ok := ruleSymbols[r]; ok {
		return s
	}
	return "unknown"
}

// String returns the wire symbol; rule kinds are logged by symbol.
func (r RuleKind) String() string {
	return r.Symbol()
}

// DecodeRuleKind resolves a backend symbol to its RuleKind.
//
// # Outputs
//
//   - RuleKind: The matching kind.
//   - error: ErrUnknownRule (wrapped with the symbol) if unrecognized.
func DecodeRuleKind(symbol string) (RuleKind, error) {
	if kind, ok := symbolRules[symbol]; ok {
		return kind, nil
	}
	return RuleUnknown, fmt.Errorf("%w: %q", ErrUnknownRule, symbol)
}

// MarshalJSON encodes the rule as its wire symbol.
func (r RuleKind) MarshalJSON() ([]byte, error) {
	if _, ok := ruleSymbols[r]; !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownRule, int(r))
	}
	return json.Marshal(r.Symbol())
}

// UnmarshalJSON decodes a wire symbol, rejecting unknown values.
func (r *RuleKind) UnmarshalJSON(data []byte) error {
	var symbol string
	if err := json.Unmarshal(data, &symbol); err != nil {
		return err
	}
	kind, err := DecodeRuleKind(symbol)
	if err != nil {
		return err
	}
	*r = kind
	return nil
}

// Occurrence is one source location of a smell. EndLine and EndCol are
// zero when the backend reports a point rather than a range.
type Occurrence struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line,omitempty"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col,omitempty"`
}

// Smell is a detected code-quality/energy issue at a specific location.
//
// # Description
//
// ID is derived deterministically from (Path, Rule, primary occurrence),
// so re-detecting an unchanged file yields the same id and references
// captured by the UI before a refresh still resolve. A smell that was
// fixed or moved legitimately stops resolving; callers treat that miss
// as a first-class outcome, not an error.
type Smell struct {
	// ID is the stable identifier. See NewID.
	ID string `json:"id"`

	// Rule is the detection rule that produced this smell.
	Rule RuleKind `json:"rule"`

	// Message is the backend's human-readable description.
	Message string `json:"message"`

	// Confidence is the backend's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Path is the file the smell belongs to.
	Path string `json:"path"`

	// Occurrences lists the locations; the first entry is primary.
	Occurrences []Occurrence `json:"occurrences"`

	// Metadata carries opaque backend extras (loop depth, call counts).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Primary returns the primary occurrence, or a zero Occurrence if the
// backend sent none.
func (s *Smell) Primary() Occurrence {
	if len(s.Occurrences) == 0 {
		return Occurrence{}
	}
	return s.Occurrences[0]
}
