// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Per-frame metric related abstractions.

package vqm

import (
	"encoding/json"
	"fmt"
	"io"
)

// FrameMetric contains metric value for a single frame pair.
type FrameMetric struct {
	FrameNum uint
	Value    float64
}

// FrameMetrics is an ordered per-frame report, index 0 being the first frame.
type FrameMetrics []FrameMetric

func (fm *FrameMetrics) FromJSON(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("FromJSON() Read from io.Reader: %w", err)
	}

	if err := json.Unmarshal(data, fm); err != nil {
		return fmt.Errorf("FromJSON() JSON unmarshal: %w", err)
	}

	return nil
}

// Values returns metric values in frame order.
func (fm FrameMetrics) Values() []float64 {
	v := make([]float64, len(fm))
	for i := range fm {
		v[i] = fm[i].Value
	}
	return v
}

func (fm *FrameMetrics) ToJSON(w io.Writer) error {
	jDoc, err := json.MarshalIndent(fm, "", "  ")
	if err != nil {
		return fmt.Errorf("ToJSON() marshal: %w", err)
	}

	if _, err := w.Write(jDoc); err != nil {
		return fmt.Errorf("ToJSON() write to Writer: %w", err)
	}

	return nil
}
