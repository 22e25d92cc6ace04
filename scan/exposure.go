package scan

import (
	"github.com/nasa-jpl/fs4000scan/mathx"
	"github.com/nasa-jpl/fs4000scan/util"
)

// Exposure calibration constants. These resolve spec.md's open calibration
// question (§9): the original's auto-exposure logic was present only as
// commented-out dead code. The 99.5th-percentile target and the speed
// floor are named here, not buried in arithmetic, so they can be retuned.
const (
	// ExposureTargetPercentile is the histogram percentile whose sample
	// value is driven toward the top of the 16-bit range.
	ExposureTargetPercentile = 99.5

	// ExposureTargetValue is the 16-bit sample value the target
	// percentile is driven toward, without clipping.
	ExposureTargetValue = (1 << 16) - 1

	// MinSpeed is the slowest (longest exposure) speed the orchestrator
	// will fall back to while still under-exposed after shutter clamping.
	MinSpeed = 1
)

// ChannelSamples extracts one channel's samples from a pre-pass buffer
// (three interleaved channels, left_to_right irrelevant for a histogram).
func ChannelSamples(buf *Buffer, channel int) []uint16 {
	v := asUint16(buf.Data)
	n := v.Len()
	out := make([]uint16, 0, n/3+1)
	for i := channel; i < n; i += 3 {
		out = append(out, v.get(i))
	}
	return out
}

// CalibrationResult is the per-channel shutter/boost/speed the pre-pass
// histogram derives.
type CalibrationResult struct {
	Shutter [3]uint16
	Boost   [3]uint16
	Speed   int
	// Satisfied reports whether every channel reached its exposure target
	// by shutter alone, without needing the speed floor.
	Satisfied bool
}

// Calibrate derives a CalibrationResult from a pre-pass buffer: for each
// channel, the 99.5th-percentile sample is compared against
// ExposureTargetValue. If the shutter needed to reach the target would
// exceed maxShutter, shutter is clamped there and the residual
// multiplicative gain is pushed into boost (256 nominal, scaled up).
// The result does not depend on currentSpeed, which is only copied into
// Speed: the caller's pre-pass loop (spec §4.4) lowers speed one step at a
// time while Satisfied is false, so any channel that needed boost takes
// speed down to MinSpeed, and shutter and boost are not recomputed for the
// slower speed.
func Calibrate(buf *Buffer, currentShutter [3]uint16, maxShutter uint16, currentSpeed int) CalibrationResult {
	var result CalibrationResult
	result.Speed = currentSpeed
	result.Satisfied = true

	for c := 0; c < 3; c++ {
		samples := ChannelSamples(buf, c)
		p := mathx.Percentile(samples, ExposureTargetPercentile)
		if p == 0 {
			result.Shutter[c] = currentShutter[c]
			result.Boost[c] = 256
			continue
		}

		ratio := float64(ExposureTargetValue) / float64(p)
		wanted := float64(currentShutter[c]) * ratio

		if wanted > float64(maxShutter) {
			result.Shutter[c] = maxShutter
			residual := wanted / float64(maxShutter)
			boost := mathx.Round(residual*256, 1)
			if boost < 256 {
				boost = 256
			}
			result.Boost[c] = uint16(boost)
			result.Satisfied = false
		} else {
			wanted = util.Clamp(wanted, 1, float64(maxShutter))
			result.Shutter[c] = uint16(mathx.Round(wanted, 1))
			result.Boost[c] = 256
		}
	}

	return result
}
