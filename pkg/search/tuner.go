// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import "math/rand/v2"

const jitterAmplitude = 0.1

// Tuner adjusts sampling hyperparameters from relevance feedback. Its
// state lives on the per-request C2 loop stack — there is no shared
// or global tuner.
type Tuner struct {
	flags TuningFlags
}

// NewTuner builds a Tuner honoring which parameters are enabled for
// tuning on this invocation.
func NewTuner(flags TuningFlags) *Tuner {
	return &Tuner{flags: flags}
}

// Tune computes the next HyperParams from the previous ones and the
// normalized average relevance (avg ∈ [0,1]) of the round's results.
// Disabled parameters pass through unchanged.
func (t *Tuner) Tune(prev HyperParams, avg float64) HyperParams {
	explore := 1 - avg
	out := prev

	if t.flags.Temperature {
		out.Temperature = clamp(0.3+0.7*explore+jitter(), 0.2, 1.0)
	}
	if t.flags.TopP {
		out.TopP = clamp(0.6+0.35*explore+jitter(), 0.5, 1.0)
	}
	if t.flags.FrequencyPenalty {
		out.FrequencyPenalty = clamp(0.1+0.8*explore+jitter(), 0, 1)
	}
	if t.flags.PresencePenalty {
		out.PresencePenalty = clamp(0.2+0.6*explore+jitter(), 0, 1)
	}
	return out
}

func jitter() float64 {
	return (rand.Float64()*2 - 1) * jitterAmplitude
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AverageRelevance computes the average score of the top n results
// (or all of them, if fewer), relative to the best score seen so far
// in the run. A bestSoFar of 0 is treated as "no prior best" and the
// raw average score is returned, clamped to [0,1].
func AverageRelevance(results []Result, n int, bestSoFar float32) float64 {
	if len(results) == 0 {
		return 0
	}
	if n > len(results) {
		n = len(results)
	}

	var sum float32
	for _, r := range results[:n] {
		sum += r.Score
	}
	avg := sum / float32(n)

	if bestSoFar > 0 {
		avg = avg / bestSoFar
	}
	if avg > 1 {
		avg = 1
	}
	if avg < 0 {
		avg = 0
	}
	return float64(avg)
}
