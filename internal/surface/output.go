package surface

import (
	"io"
	"sync"
	"time"
)

type Kind string

const (
	KindPrompt Kind = "prompt"
	KindResult Kind = "result"
	KindStdout Kind = "stdout"
	KindStderr Kind = "stderr"
	KindNotice Kind = "notice"
)

// OutputRecord is one display fragment. Records are never changed once added.
type OutputRecord struct {
	Seq  uint64    `json:"seq"`
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

type Watcher func(rec OutputRecord)

// Output is a display region where the newest fragment is always first.
type Output struct {
	mu       sync.RWMutex
	records  []OutputRecord // oldest first; reversed on read
	seq      uint64
	limit    int
	watchers []Watcher
	now      func() time.Time
}

type OutputOption func(*Output)

// WithLimit bounds how many fragments are retained; the oldest fall off.
func WithLimit(n int) OutputOption {
	return func(o *Output) {
		o.limit = n
	}
}

func NewOutput(opts ...OutputOption) *Output {
	o := &Output{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Prepend places a fragment ahead of everything rendered so far.
func (o *Output) Prepend(kind Kind, text string) OutputRecord {
	o.mu.Lock()
	o.seq++
	rec := OutputRecord{Seq: o.seq, Kind: kind, Text: text, Time: o.now()}
	o.records = append(o.records, rec)
	if o.limit > 0 && len(o.records) > o.limit {
		o.records = append(o.records[:0:0], o.records[len(o.records)-o.limit:]...)
	}
	watchers := o.watchers
	o.mu.Unlock()

	for _, w := range watchers {
		w(rec)
	}
	return rec
}

// Records returns every retained fragment, newest first.
func (o *Output) Records() []OutputRecord {
	return o.Since(0)
}

// Since returns the fragments with a sequence above seq, newest first.
func (o *Output) Since(seq uint64) []OutputRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]OutputRecord, 0)
	for i := len(o.records) - 1; i >= 0; i-- {
		if o.records[i].Seq <= seq {
			break
		}
		out = append(out, o.records[i])
	}
	return out
}

func (o *Output) LastSeq() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.seq
}

func (o *Output) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.records)
}

func (o *Output) Watch(w Watcher) {
	if w == nil {
		return
	}
	o.mu.Lock()
	o.watchers = append(o.watchers, w)
	o.mu.Unlock()
}

// Writer adapts the region to an io.Writer; each write becomes one fragment.
func (o *Output) Writer(kind Kind) io.Writer {
	return &outputWriter{out: o, kind: kind}
}

type outputWriter struct {
	out  *Output
	kind Kind
}

func (w *outputWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.out.Prepend(w.kind, string(p))
	return len(p), nil
}
