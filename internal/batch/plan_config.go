// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Batch plan configuration related abstractions.
package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/vqm"
)

// PlanConfigError error type defines PlanConfig validation failures.
type PlanConfigError struct {
	msg     string
	reasons []string
}

func (e *PlanConfigError) Error() string {
	if len(e.reasons) > 0 {
		return fmt.Sprintf("%s with reasons:\n%s", e.msg, strings.Join(e.reasons, "\n"))
	}
	return e.msg
}

func (e *PlanConfigError) Reasons() []string {
	return e.reasons
}

func (e *PlanConfigError) addReason(reason string) {
	e.reasons = append(e.reasons, reason)
}

// Pair is a named reference/test file pair to compare.
//
// Name is used when generating output file names. When omitted it is derived from the
// test file name.
type Pair struct {
	Name      string
	Reference string
	Test      string
}

// EffectiveName returns Name or, if empty, test file base name without extension.
func (p Pair) EffectiveName() string {
	if p.Name != "" {
		return p.Name
	}
	base := filepath.Base(p.Test)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PlanConfig holds configuration for new Plan creation.
type PlanConfig struct {
	Pairs []Pair
	// Metric names, each is computed for every pair.
	Metrics []string
}

// NewPlanConfigFromJSON will unmarshal JSON into PlanConfig instance.
func NewPlanConfigFromJSON(jdoc []byte) (PlanConfig, error) {
	var pc PlanConfig
	err := json.Unmarshal(jdoc, &pc)
	if err != nil {
		return pc, err
	}
	return pc, nil
}

func (p *PlanConfig) IsValid() (bool, error) {
	errPlanConfig := &PlanConfigError{msg: "validation error"}

	if len(p.Pairs) == 0 {
		errPlanConfig.addReason("Pairs missing")
	}
	// Pairs whose names map to the same output file would overwrite each other.
	names := make([]string, 0, len(p.Pairs))
	for _, pair := range p.Pairs {
		names = append(names, outputName(pair.EffectiveName()))
	}
	if hasDuplicates(names) {
		errPlanConfig.addReason("Duplicate pair names detected")
	}
	if len(p.Metrics) == 0 {
		errPlanConfig.addReason("Metrics missing")
	}
	if hasDuplicates(p.Metrics) {
		errPlanConfig.addReason("Duplicate metrics detected")
	}

	for _, m := range p.Metrics {
		if _, err := vqm.NewMetric(m, vqm.MetricConfig{}); err != nil {
			errPlanConfig.addReason(err.Error())
		}
	}

	for _, pair := range p.Pairs {
		for _, f := range []string{pair.Reference, pair.Test} {
			if _, err := os.Stat(f); err != nil {
				errPlanConfig.addReason(err.Error())
			}
		}
	}

	// Check if there were any validation errors?
	if len(errPlanConfig.reasons) != 0 {
		return false, errPlanConfig
	}
	return true, nil
}

// hasDuplicates checks if slice has duplicate elements.
func hasDuplicates(items []string) bool {
	seen := make(map[string]struct{}, len(items))
	for _, v := range items {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
