package telemetry

import (
	"fmt"
	"strings"

	"github.com/banshee-data/linefollow/internal/monitoring"
	"github.com/banshee-data/linefollow/internal/reflectance"
)

// LogReporter prints the dashboard values every Every ticks through
// monitoring.Logf. Every <= 1 prints every frame.
type LogReporter struct {
	Every int

	seen int
}

// NewLogReporter returns a reporter that prints one frame in every.
func NewLogReporter(every int) *LogReporter {
	return &LogReporter{Every: every}
}

func (l *LogReporter) Report(f Frame) error {
	l.seen++
	if l.Every > 1 && (l.seen-1)%l.Every != 0 {
		return nil
	}
	monitoring.Logf("%s", FormatFrame(f))
	return nil
}

// FormatFrame renders the named values the robot's dashboard shows, one
// "key: value" pair per line after a tick header.
func FormatFrame(f Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick %d mistake=%s steer=(%.3f, %.3f)\n", f.Tick, f.Mistake, f.Steer.Forward, f.Steer.Turn)
	writeReading(&b, "L", f.Left)
	writeReading(&b, "R", f.Right)
	writeReading(&b, "Δ", f.Difference)
	fmt.Fprintf(&b, "Odometer Heading: %.2f\n", f.Pose.Heading)
	fmt.Fprintf(&b, "Odometer X: %.3f\n", f.Pose.X)
	fmt.Fprintf(&b, "Odometer Y: %.3f", f.Pose.Y)
	return b.String()
}

func writeReading(b *strings.Builder, label string, r reflectance.Reading) {
	fmt.Fprintf(b, "Reflectance (%s) Raw: %.4f\n", label, r.Raw)
	fmt.Fprintf(b, "Reflectance (%s) EMA: %.4f\n", label, r.Filtered)
	fmt.Fprintf(b, "Reflectance (%s) Mean: %.4f\n", label, r.Mean)
	fmt.Fprintf(b, "Reflectance (%s) Median: %.4f\n", label, r.Median)
}
