// Package reflectance conditions the two line-sensor voltages into smoothed
// left, right and difference signals.
package reflectance

import (
	"math"

	"github.com/banshee-data/linefollow/internal/filter"
)

// Reading is every processed form of one channel at a single tick.
type Reading struct {
	Raw      float64 `json:"raw"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Filtered float64 `json:"filtered"`
}

// Get returns the reading for mode, falling back to the median like Query.
func (r Reading) Get(mode Mode) float64 {
	switch mode {
	case ModeRaw:
		return r.Raw
	case ModeMean:
		return r.Mean
	case ModeFiltered:
		return r.Filtered
	default:
		return r.Median
	}
}

// Snapshot holds the processed readings of all three channels.
type Snapshot struct {
	Left       Reading `json:"left"`
	Right      Reading `json:"right"`
	Difference Reading `json:"difference"`
}

type channel struct {
	ema    *filter.ExponentialFilter
	window *filter.SlidingWindow
}

func newChannel(gain float64, capacity int) (channel, error) {
	ema, err := filter.NewExponentialFilter(gain)
	if err != nil {
		return channel{}, err
	}
	window, err := filter.NewSlidingWindow(capacity)
	if err != nil {
		return channel{}, err
	}
	return channel{ema: ema, window: window}, nil
}

func (c channel) seed(v float64) {
	c.ema.Set(v)
	c.window.Fill(v)
}

func (c channel) update(v float64) {
	c.ema.Update(v)
	c.window.Update(v)
}

func (c channel) query(mode Mode) float64 {
	switch mode {
	case ModeRaw:
		return c.window.Latest()
	case ModeMean:
		return c.window.Mean()
	case ModeFiltered:
		return c.ema.Get()
	case ModeMedian:
		return c.window.Median()
	default:
		// Unrecognised modes read the median.
		return c.window.Median()
	}
}

func (c channel) reading() Reading {
	return Reading{
		Raw:      c.window.Latest(),
		Mean:     c.window.Mean(),
		Median:   c.window.Median(),
		Filtered: c.ema.Get(),
	}
}

// Processor owns one exponential filter and one sliding window per channel.
// All channels share the same gain and capacity and advance together.
type Processor struct {
	gain     float64
	capacity int

	left  channel
	right channel
	diff  channel
}

// NewProcessor builds the three channels. It fails with
// filter.ErrInvalidParameter when gain is outside [0, 1] or capacity < 1.
func NewProcessor(gain float64, capacity int) (*Processor, error) {
	p := &Processor{gain: gain, capacity: capacity}
	var err error
	if p.left, err = newChannel(gain, capacity); err != nil {
		return nil, err
	}
	if p.right, err = newChannel(gain, capacity); err != nil {
		return nil, err
	}
	if p.diff, err = newChannel(gain, capacity); err != nil {
		return nil, err
	}
	return p, nil
}

// Gain returns the shared filter gain.
func (p *Processor) Gain() float64 { return p.gain }

// Capacity returns the shared window capacity.
func (p *Processor) Capacity() int { return p.capacity }

// Init seeds every filter and window from the first pair of readings so the
// outputs do not ramp up from zero. Call it once before the first Update.
func (p *Processor) Init(leftRaw, rightRaw float64) {
	p.left.seed(leftRaw)
	p.right.seed(rightRaw)
	p.diff.seed(leftRaw - rightRaw)
}

// Update advances the left, right and difference channels, in that order,
// and returns the resulting snapshot.
func (p *Processor) Update(leftRaw, rightRaw float64) Snapshot {
	p.left.update(leftRaw)
	p.right.update(rightRaw)
	p.diff.update(leftRaw - rightRaw)
	return p.Snapshot()
}

// Query returns one processed value. An unknown channel yields NaN.
func (p *Processor) Query(c Channel, mode Mode) float64 {
	ch, ok := p.channel(c)
	if !ok {
		return math.NaN()
	}
	return ch.query(mode)
}

// Snapshot returns every processed value without advancing any channel.
func (p *Processor) Snapshot() Snapshot {
	return Snapshot{
		Left:       p.left.reading(),
		Right:      p.right.reading(),
		Difference: p.diff.reading(),
	}
}

func (p *Processor) channel(c Channel) (channel, bool) {
	switch c {
	case ChannelLeft:
		return p.left, true
	case ChannelRight:
		return p.right, true
	case ChannelDifference:
		return p.diff, true
	default:
		return channel{}, false
	}
}
