// Package ci implements the adaptive confidence-interval controller:
// given a sample buffer's aggregates, it computes a two-sided interval
// around the mean, classifies its quality, and recommends either
// stopping or growing to a larger total sample count.
package ci

import (
	"math"

	"github.com/ja7ad/microbench/pkg/numeric"
)

// MinSampleSize is the minimum count below which no CI is reported and
// a resample to this size is always recommended.
const MinSampleSize = 100

// DFCap is the degrees-of-freedom ceiling past which the normal
// approximation replaces the small-sample t-table.
const DFCap = 30

// Quality buckets the observed RCIW.
type Quality string

const (
	Excellent  Quality = "excellent"
	Good       Quality = "good"
	Acceptable Quality = "acceptable"
	Poor       Quality = "poor"
	Unknown    Quality = "unknown"
)

// Report is the immutable decision returned by Decide.
type Report struct {
	Lower           float64
	Upper           float64
	Level           float64
	RCIWObserved    float64
	SampleSize      int
	Quality         Quality
	ConfidenceScore float64
	ResampleSize    int
	HasResampleSize bool
}

// Buffer is the read-only subset of sample.Buffer the controller needs;
// defined here so ci does not import sample's write surface.
type Buffer interface {
	Count() int
	Mean() float64
	StdErr() float64
	ConfidenceLevel() float64
	RCIW() float64
}

// Controller decides stop-vs-resample from a Buffer's current
// aggregates. HardCap bounds how large a resample recommendation may
// grow; the zero value means no cap.
type Controller struct {
	HardCap int
}

// New returns a Controller with the given hard cap on resample size (0
// for unlimited).
func New(hardCap int) *Controller {
	return &Controller{HardCap: hardCap}
}

// Decide computes a Report from buf's current aggregates.
func (c *Controller) Decide(buf Buffer) Report {
	n := buf.Count()
	level := buf.ConfidenceLevel()
	target := buf.RCIW()

	if n < MinSampleSize {
		return Report{
			Lower: math.NaN(), Upper: math.NaN(), Level: level,
			RCIWObserved: math.NaN(), SampleSize: n, Quality: Unknown,
			ConfidenceScore: confidenceScore(n, math.NaN(), target),
			ResampleSize:    MinSampleSize, HasResampleSize: true,
		}
	}

	mean := buf.Mean()
	stderr := buf.StdErr()

	if stderr <= epsilon {
		return Report{
			Lower: mean, Upper: mean, Level: level,
			RCIWObserved: 0, SampleSize: n, Quality: Excellent,
			ConfidenceScore: 1,
		}
	}

	tStar := criticalValue(level, n-1)
	h := tStar * stderr
	lower := mean - h
	upper := mean + h

	var rciwObserved float64
	if math.Abs(mean) < epsilon {
		rciwObserved = math.NaN()
	} else {
		rciwObserved = numeric.SafeDiv(2*h, mean) * 100
	}

	quality := classify(rciwObserved)
	score := confidenceScore(n, rciwObserved, target)

	report := Report{
		Lower: lower, Upper: upper, Level: level,
		RCIWObserved: rciwObserved, SampleSize: n,
		Quality: quality, ConfidenceScore: score,
	}

	if math.IsNaN(rciwObserved) || rciwObserved <= target {
		return report
	}

	nTarget := int(math.Ceil(float64(n) * math.Pow(rciwObserved/target, 2)))
	if nTarget < MinSampleSize {
		nTarget = MinSampleSize
	}
	if c.HardCap > 0 && nTarget > c.HardCap {
		nTarget = c.HardCap
	}
	if nTarget > n {
		report.ResampleSize = nTarget
		report.HasResampleSize = true
	}
	return report
}

const epsilon = 1e-12

func classify(rciwObserved float64) Quality {
	switch {
	case math.IsNaN(rciwObserved):
		return Unknown
	case rciwObserved <= 2:
		return Excellent
	case rciwObserved <= 5:
		return Good
	case rciwObserved <= 10:
		return Acceptable
	default:
		return Poor
	}
}

// confidenceScore combines a sample-size factor saturating near 200
// samples with an RCIW factor that is unity at the target and degrades
// linearly to 0 at 5x the target.
func confidenceScore(n int, rciwObserved, target float64) float64 {
	sizeFactor := math.Min(1, float64(n)/200)
	if math.IsNaN(rciwObserved) || target <= 0 {
		return sizeFactor * 0.1
	}
	ratio := rciwObserved / target
	rciwFactor := numeric.Clamp01(1 - (ratio-1)/4)
	return sizeFactor * rciwFactor
}
