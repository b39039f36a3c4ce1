package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// OptimizeLevel is a wasm-opt optimization level. The zero value disables optimization.
type OptimizeLevel string

// Optimization levels, from the lightest speed pass to the most aggressive size pass.
const (
	OptimizeOff             OptimizeLevel = ""
	OptimizeSpeedMinor      OptimizeLevel = "1"
	OptimizeSpeedMedium     OptimizeLevel = "2"
	OptimizeSpeedMajor      OptimizeLevel = "3"
	OptimizeSpeedAggressive OptimizeLevel = "4"
	OptimizeSize            OptimizeLevel = "s"
	OptimizeSizeAggressive  OptimizeLevel = "z"
)

// ParseOptimizeLevel accepts 1, 2, 3, 4, s and z, with or without a leading O or -O.
// The empty string and "off" disable optimization.
func ParseOptimizeLevel(s string) (OptimizeLevel, error) {
	v := strings.TrimSpace(s)
	if v == "" || strings.EqualFold(v, "off") {
		return OptimizeOff, nil
	}
	v = strings.TrimPrefix(strings.TrimPrefix(v, "-"), "O")
	switch l := OptimizeLevel(v); l {
	case OptimizeOff:
		// A bare -O runs wasm-opt's default passes, which are the size passes.
		return OptimizeSize, nil
	case OptimizeSpeedMinor, OptimizeSpeedMedium, OptimizeSpeedMajor, OptimizeSpeedAggressive,
		OptimizeSize, OptimizeSizeAggressive:
		return l, nil
	}
	return OptimizeOff, zerr.With(zerr.Wrap(ErrConfigInvalid, "unknown optimization level"), "optimize", s)
}

// Enabled reports whether modules are optimized at all.
func (l OptimizeLevel) Enabled() bool {
	return l != OptimizeOff
}

// Flag returns the wasm-opt flag for the level.
func (l OptimizeLevel) Flag() string {
	return "-O" + string(l)
}

// featureFlags maps WebAssembly feature names to the wasm-opt flags enabling them.
var featureFlags = map[string]string{
	"atomics":            "--enable-threads",
	"trunc_sat":          "--enable-nontrapping-float-to-int",
	"simd":               "--enable-simd",
	"bulk_memory":        "--enable-bulk-memory",
	"exception_handling": "--enable-exception-handling",
	"tail_call":          "--enable-tail-call",
	"reference_types":    "--enable-reference-types",
	"multivalue":         "--enable-multivalue",
	"gc":                 "--enable-gc",
	"memory64":           "--enable-memory64",
	"relaxed_simd":       "--enable-relaxed-simd",
	"extended_const":     "--enable-extended-const",
	"strings":            "--enable-strings",
	"multi_memories":     "--enable-multimemory",
	"mvp":                "--mvp-features",
	"all":                "--all-features",
}

// DefaultFeatures are the features a backend's output needs beyond the MVP, per backend id.
func DefaultFeatures() map[string][]string {
	return map[string][]string{
		"go": {"bulk_memory"},
	}
}

// ValidateFeatures reports the first unknown feature name.
func ValidateFeatures(features []string) error {
	for _, f := range features {
		if _, ok := featureFlags[f]; !ok {
			return zerr.With(zerr.Wrap(ErrConfigInvalid, "unknown wasm feature"), "feature", f)
		}
	}
	return nil
}

// FeatureFlags returns the wasm-opt flags for features, sorted and without duplicates.
// Unknown names are skipped.
func FeatureFlags(features []string) []string {
	var flags []string
	for _, f := range features {
		if flag, ok := featureFlags[f]; ok {
			flags = append(flags, flag)
		}
	}
	slices.Sort(flags)
	return slices.Compact(flags)
}
