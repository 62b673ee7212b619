// internal/catalog/translator.go
package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleKind names a value translation strategy
type RuleKind string

const (
	RuleIdentity      RuleKind = "identity"
	RuleScaleToRange  RuleKind = "scale_to_range"
	RulePercentOffset RuleKind = "percent_offset"
	RulePercentScale  RuleKind = "percent_scale"
)

// Percent offset layout: human 50..100 in buckets of 5, native steps of 25
const (
	percentOffsetBase   = 50
	percentOffsetBucket = 5
	percentOffsetStep   = 25
)

// nativeSpan is the width of the device's 8-bit encoding
var nativeSpan = decimal.NewFromInt(256)

// TranslationRule maps human values to native encodings and back.
// Param is the divisor for RuleScaleToRange and the span for RulePercentScale.
type TranslationRule struct {
	Kind  RuleKind `yaml:"kind" json:"kind"`
	Param int      `yaml:"param,omitempty" json:"param,omitempty"`
}

// Identity returns the passthrough rule
func Identity() TranslationRule {
	return TranslationRule{Kind: RuleIdentity}
}

// ScaleToRange returns a rule for a 0..divisor-1 human range
func ScaleToRange(divisor int) TranslationRule {
	return TranslationRule{Kind: RuleScaleToRange, Param: divisor}
}

// PercentScale returns a rule for a 0..span-1 human range
func PercentScale(span int) TranslationRule {
	return TranslationRule{Kind: RulePercentScale, Param: span}
}

// PercentOffset returns the 50..100 bucketed rule
func PercentOffset() TranslationRule {
	return TranslationRule{Kind: RulePercentOffset}
}

// Validate checks that the rule is one of the known kinds with a usable parameter
func (r TranslationRule) Validate() error {
	switch r.Kind {
	case RuleIdentity, RulePercentOffset:
		return nil
	case RuleScaleToRange, RulePercentScale:
		if r.Param <= 0 {
			return fmt.Errorf("rule %s requires a positive param, got %d", r.Kind, r.Param)
		}
		return nil
	default:
		return fmt.Errorf("unknown translation rule %q", r.Kind)
	}
}

// ToNative converts a human value into the device encoding. The result is
// not range checked.
func ToNative(human int, rule TranslationRule) int {
	h := decimal.NewFromInt(int64(human))

	switch rule.Kind {
	case RuleScaleToRange, RulePercentScale:
		return int(h.Mul(nativeSpan).Div(decimal.NewFromInt(int64(rule.Param))).RoundBank(0).IntPart())
	case RulePercentOffset:
		buckets := h.Sub(decimal.NewFromInt(percentOffsetBase)).
			Div(decimal.NewFromInt(percentOffsetBucket)).
			Floor()
		return int(buckets.IntPart()) * percentOffsetStep
	default:
		return human
	}
}

// FromNative converts a device value back into the human scale
func FromNative(native int, rule TranslationRule) int {
	n := decimal.NewFromInt(int64(native))

	switch rule.Kind {
	case RuleScaleToRange, RulePercentScale:
		return int(n.Mul(decimal.NewFromInt(int64(rule.Param))).Div(nativeSpan).RoundBank(0).IntPart())
	case RulePercentOffset:
		steps := n.Div(decimal.NewFromInt(percentOffsetStep)).Floor()
		return int(steps.IntPart())*percentOffsetBucket + percentOffsetBase
	default:
		return native
	}
}

// Bucket returns the value a human input reads back as after a round trip.
// Only RulePercentOffset is lossy at human granularity.
func Bucket(human int, rule TranslationRule) int {
	return FromNative(ToNative(human, rule), rule)
}

// ToNative translates a human value and checks it against the native range
func (p PropertyDescriptor) ToNative(human int) (int, bool) {
	native := ToNative(human, p.Rule)
	return native, p.Native.Contains(native)
}

// FromNative translates a native value into the human scale
func (p PropertyDescriptor) FromNative(native int) int {
	return FromNative(native, p.Rule)
}
