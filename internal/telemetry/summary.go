package telemetry

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/linefollow/internal/linetrack"
	"github.com/banshee-data/linefollow/internal/odometry"
)

// Summary aggregates a run of frames.
type Summary struct {
	Frames int `json:"frames"`

	// Statistics of the filtered difference signal.
	DifferenceMean   float64 `json:"difference_mean"`
	DifferenceStdDev float64 `json:"difference_stddev"`
	DifferenceMaxAbs float64 `json:"difference_max_abs"`

	// Ticks spent in each state, and how many times a drift began.
	TicksOnLine   int `json:"ticks_on_line"`
	TicksLeft     int `json:"ticks_drifted_left"`
	TicksRight    int `json:"ticks_drifted_right"`
	DriftEpisodes int `json:"drift_episodes"`

	Distance  float64       `json:"distance"`
	Duration  time.Duration `json:"duration"`
	FinalPose odometry.Pose `json:"final_pose"`
}

// Summarize computes a Summary over frames in tick order.
func Summarize(frames []Frame) Summary {
	s := Summary{Frames: len(frames)}
	if len(frames) == 0 {
		return s
	}

	diffs := make([]float64, len(frames))
	prev := linetrack.MistakeNone
	for i, f := range frames {
		diffs[i] = f.Difference.Filtered
		if a := math.Abs(diffs[i]); a > s.DifferenceMaxAbs {
			s.DifferenceMaxAbs = a
		}

		switch f.Mistake {
		case linetrack.MistakeDriftedLeft:
			s.TicksLeft++
		case linetrack.MistakeDriftedRight:
			s.TicksRight++
		default:
			s.TicksOnLine++
		}
		if f.Mistake != linetrack.MistakeNone && f.Mistake != prev {
			s.DriftEpisodes++
		}
		prev = f.Mistake

		if i > 0 {
			p := frames[i-1].Pose
			s.Distance += math.Hypot(f.Pose.X-p.X, f.Pose.Y-p.Y)
		}
	}

	if len(diffs) > 1 {
		s.DifferenceMean, s.DifferenceStdDev = stat.MeanStdDev(diffs, nil)
	} else {
		s.DifferenceMean = diffs[0]
	}

	s.Duration = frames[len(frames)-1].Time.Sub(frames[0].Time)
	s.FinalPose = frames[len(frames)-1].Pose
	return s
}

// Accumulator is a Reporter that keeps a running Summary over every frame it
// sees, however long the run. The difference statistics use Welford's
// update and agree with Summarize.
type Accumulator struct {
	mu      sync.Mutex
	s       Summary
	m2      float64
	first   time.Time
	last    Frame
	prevSet bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Report(f Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.s
	s.Frames++
	d := f.Difference.Filtered
	delta := d - s.DifferenceMean
	s.DifferenceMean += delta / float64(s.Frames)
	a.m2 += delta * (d - s.DifferenceMean)
	if v := math.Abs(d); v > s.DifferenceMaxAbs {
		s.DifferenceMaxAbs = v
	}

	switch f.Mistake {
	case linetrack.MistakeDriftedLeft:
		s.TicksLeft++
	case linetrack.MistakeDriftedRight:
		s.TicksRight++
	default:
		s.TicksOnLine++
	}
	prev := linetrack.MistakeNone
	if a.prevSet {
		prev = a.last.Mistake
		s.Distance += math.Hypot(f.Pose.X-a.last.Pose.X, f.Pose.Y-a.last.Pose.Y)
	} else {
		a.first = f.Time
	}
	if f.Mistake != linetrack.MistakeNone && f.Mistake != prev {
		s.DriftEpisodes++
	}

	a.last = f
	a.prevSet = true
	s.Duration = f.Time.Sub(a.first)
	s.FinalPose = f.Pose
	return nil
}

// Summary returns the summary of every frame reported so far.
func (a *Accumulator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.s
	if s.Frames > 1 {
		s.DifferenceStdDev = math.Sqrt(a.m2 / float64(s.Frames-1))
	}
	return s
}
