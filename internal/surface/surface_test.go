package surface

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInput_InertUntilSubscribed(t *testing.T) {
	in := NewInput()
	in.SetValue("(+ 1 2)")

	ev, err := in.Fire(FormSubmit)
	require.ErrorIs(t, err, ErrInert)
	require.Nil(t, ev)

	ev, err = in.Submit("(+ 1 2)", Activate)
	require.ErrorIs(t, err, ErrInert)
	require.Nil(t, ev)
	require.False(t, in.Armed())
}

func TestInput_FireSnapshotsValue(t *testing.T) {
	in := NewInput()
	var seen []*TriggerEvent
	in.Subscribe(func(ev *TriggerEvent) error {
		seen = append(seen, ev)
		return nil
	})
	require.True(t, in.Armed())

	in.SetValue("first")
	ev1, err := in.Fire(FormSubmit)
	require.NoError(t, err)
	in.SetValue("second")
	ev2, err := in.Fire(Activate)
	require.NoError(t, err)

	require.Equal(t, []*TriggerEvent{ev1, ev2}, seen)
	require.Equal(t, "first", ev1.Value)
	require.Equal(t, FormSubmit, ev1.Kind)
	require.Equal(t, "second", ev2.Value)
	require.Equal(t, Activate, ev2.Kind)
}

func TestInput_ListenerRejects(t *testing.T) {
	in := NewInput()
	boom := errors.New("full")
	in.Subscribe(func(ev *TriggerEvent) error { return boom })
	_, err := in.Submit("x", FormSubmit)
	require.ErrorIs(t, err, boom)
}

func TestInput_ClearSkipsNewerText(t *testing.T) {
	in := NewInput()
	in.Subscribe(func(ev *TriggerEvent) error { return nil })

	ev1, err := in.Submit("a", FormSubmit)
	require.NoError(t, err)
	ev2, err := in.Submit("b", FormSubmit)
	require.NoError(t, err)

	in.Clear(ev1)
	require.Equal(t, "b", in.Value())
	in.Clear(ev2)
	require.Equal(t, "", in.Value())
}

func TestTriggerEvent_Flags(t *testing.T) {
	in := NewInput()
	in.Subscribe(func(ev *TriggerEvent) error { return nil })
	ev, err := in.Submit("", FormSubmit)
	require.NoError(t, err)

	require.False(t, ev.DefaultPrevented())
	ev.PreventDefault()
	require.True(t, ev.DefaultPrevented())

	select {
	case <-ev.Done():
		t.Fatal("event completed early")
	default:
	}
	ev.Complete()
	ev.Complete()
	<-ev.Done()
}

func TestOutput_NewestFirst(t *testing.T) {
	out := NewOutput()
	out.Prepend(KindPrompt, "=> (define x 5)")
	out.Prepend(KindPrompt, "=> (+ x 1)")
	out.Prepend(KindResult, "6")

	recs := out.Records()
	require.Len(t, recs, 3)
	require.Equal(t, "6", recs[0].Text)
	require.Equal(t, "=> (+ x 1)", recs[1].Text)
	require.Equal(t, "=> (define x 5)", recs[2].Text)
	require.Equal(t, uint64(3), recs[0].Seq)
	require.Equal(t, uint64(3), out.LastSeq())
}

func TestOutput_Since(t *testing.T) {
	out := NewOutput()
	for _, s := range []string{"a", "b", "c"} {
		out.Prepend(KindStdout, s)
	}
	recs := out.Since(1)
	require.Len(t, recs, 2)
	require.Equal(t, "c", recs[0].Text)
	require.Equal(t, "b", recs[1].Text)
	require.Empty(t, out.Since(3))
}

func TestOutput_Limit(t *testing.T) {
	out := NewOutput(WithLimit(2))
	for _, s := range []string{"a", "b", "c"} {
		out.Prepend(KindStdout, s)
	}
	require.Equal(t, 2, out.Len())
	recs := out.Records()
	require.Equal(t, "c", recs[0].Text)
	require.Equal(t, "b", recs[1].Text)
	require.Equal(t, uint64(3), out.LastSeq())
}

func TestOutput_WriterAndWatch(t *testing.T) {
	out := NewOutput()
	var watched []OutputRecord
	out.Watch(func(rec OutputRecord) { watched = append(watched, rec) })

	w := out.Writer(KindStderr)
	n, err := w.Write([]byte("oops\n"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	n, err = w.Write(nil)
	require.NoError(t, err)
	require.Zero(t, n)

	require.Len(t, watched, 1)
	require.Equal(t, KindStderr, watched[0].Kind)
	require.Equal(t, "oops\n", watched[0].Text)
}
