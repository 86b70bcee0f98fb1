package pipeline

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/hlvr/vrcore/internal/pipeline"

type instruments struct {
	stereo    metric.Int64Counter
	fallback  metric.Int64Counter
	discarded metric.Int64Counter
	faceErrs  metric.Int64Counter
}

// newInstruments registers the frame counters on the global meter, which is
// a no-op until a provider is installed.
func newInstruments() (instruments, error) {
	m := otel.Meter(instrumentationName)
	var in instruments
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&in.stereo, "vr.frames.stereo", "Frames rendered in stereo and submitted"},
		{&in.fallback, "vr.frames.fallback", "Frames rendered mono because no head pose was available"},
		{&in.discarded, "vr.capture.discarded", "Capture buffers discarded before replay"},
		{&in.faceErrs, "vr.skybox.face_errors", "Skybox faces that failed to draw"},
	}
	for _, c := range counters {
		counter, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return in, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}
	return in, nil
}
