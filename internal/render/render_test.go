package render_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/render/rendertest"
	"github.com/hlvr/vrcore/internal/vrmath"
)

func TestCommandBuffer_Lifecycle(t *testing.T) {
	g := rendertest.New()
	cb := render.NewCommandBuffer(g)

	require.NoError(t, cb.Open(render.RecordOnly))
	assert.True(t, cb.Active())
	assert.True(t, cb.Recording())
	assert.Equal(t, render.RecordOnly, cb.Mode())

	assert.ErrorIs(t, cb.Replay(), render.ErrNoCapture, "cannot replay while recording")

	require.NoError(t, cb.Close())
	assert.False(t, cb.Recording())
	require.NoError(t, cb.Replay())
	require.NoError(t, cb.Replay())
	assert.Len(t, g.Replayed, 2)

	released, err := cb.Discard()
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, cb.Active())
	assert.Equal(t, 0, g.LiveBuffers())
}

func TestCommandBuffer_SingleCapture(t *testing.T) {
	g := rendertest.New()
	cb := render.NewCommandBuffer(g)

	require.NoError(t, cb.Open(render.RecordAndExecute))
	assert.ErrorIs(t, cb.Open(render.RecordOnly), render.ErrCaptureOpen)
	assert.Equal(t, 1, g.LiveBuffers())

	require.NoError(t, cb.Close())
	assert.ErrorIs(t, cb.Open(render.RecordOnly), render.ErrCaptureOpen, "closed but not discarded")
	assert.Equal(t, 1, g.MaxLive)
}

func TestCommandBuffer_DiscardWhileRecording(t *testing.T) {
	g := rendertest.New()
	cb := render.NewCommandBuffer(g)

	require.NoError(t, cb.Open(render.RecordOnly))
	released, err := cb.Discard()
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, g.Recording)
	assert.Equal(t, 0, g.LiveBuffers())

	released, err = cb.Discard()
	require.NoError(t, err)
	assert.False(t, released, "nothing left to discard")
}

func TestCommandBuffer_CloseWithoutOpen(t *testing.T) {
	cb := render.NewCommandBuffer(rendertest.New())
	assert.ErrorIs(t, cb.Close(), render.ErrNoCapture)
	assert.ErrorIs(t, cb.Replay(), render.ErrNoCapture)
}

func TestCommandBuffer_BeginRecordFailureReleases(t *testing.T) {
	g := rendertest.New()
	g.Fail["BeginRecord"] = errors.New("GL_OUT_OF_MEMORY")
	cb := render.NewCommandBuffer(g)

	err := cb.Open(render.RecordOnly)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin record")
	assert.False(t, cb.Active())
	assert.Equal(t, 0, g.LiveBuffers())
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		mode int
		name string
		rec  render.RecordMode
		eyes []vrmath.Eye
	}{
		{0, "double_replay", render.RecordOnly, []vrmath.Eye{vrmath.EyeLeft, vrmath.EyeRight}},
		{1, "mixed", render.RecordAndExecute, []vrmath.Eye{vrmath.EyeRight}},
		{7, "double_replay", render.RecordOnly, []vrmath.Eye{vrmath.EyeLeft, vrmath.EyeRight}},
	}
	for _, tt := range tests {
		s := render.StrategyFor(tt.mode)
		assert.Equal(t, tt.name, s.Name())
		assert.Equal(t, tt.rec, s.RecordMode())
		assert.Equal(t, tt.eyes, s.ReplayEyes())
	}
}

func TestWithAttrib_RestoresOnError(t *testing.T) {
	g := rendertest.New()
	boom := errors.New("boom")

	err := render.WithAttrib(g, render.AttribAll, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, g.Balanced())
}

func TestWithAttrib_PushFailureSkipsBody(t *testing.T) {
	g := rendertest.New()
	g.Fail["PushAttrib"] = errors.New("stack overflow")
	called := false

	err := render.WithAttrib(g, render.AttribAll, func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, 0, g.Count("PopAttrib"))
}

func TestWithMatrices(t *testing.T) {
	g := rendertest.New()

	require.NoError(t, render.WithMatrices(g, func() error {
		assert.Equal(t, 1, g.MatrixDepth[render.ModelView])
		assert.Equal(t, 1, g.MatrixDepth[render.Projection])
		return nil
	}))
	assert.True(t, g.Balanced())
	assert.Equal(t, 2, g.Count("LoadIdentity"))
}

func TestWithMatrices_PartialPushIsUnwound(t *testing.T) {
	g := rendertest.New()
	g.Fail["PushMatrix"] = errors.New("stack overflow")
	g.FailAfter["PushMatrix"] = 1

	err := render.WithMatrices(g, func() error {
		t.Fatal("body must not run")
		return nil
	})
	require.Error(t, err)
	assert.True(t, g.Balanced())
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	var ran []string
	boom := errors.New("GL_INVALID_OPERATION")

	err := render.Run(
		render.Step{Name: "first", Do: func() error { ran = append(ran, "first"); return nil }},
		render.Step{Name: "second", Do: func() error { ran = append(ran, "second"); return boom }},
		render.Step{Name: "third", Do: func() error { ran = append(ran, "third"); return nil }},
	)

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestTargets_RejectInterleavedBrackets(t *testing.T) {
	tg := rendertest.NewTargets()

	require.NoError(t, tg.Prepare(vrmath.EyeLeft))
	assert.Error(t, tg.Prepare(vrmath.EyeRight))
	require.NoError(t, tg.Finish(vrmath.EyeLeft))
	assert.False(t, tg.Open())
}
