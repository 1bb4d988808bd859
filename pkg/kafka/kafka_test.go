package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "index.complete")

	err := p.Publish(context.Background(), Event{Key: "v1", Value: map[string]int{"terms": 3}})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "v1" || string(w.msgs[0].Value) != `{"terms":3}` {
		t.Errorf("message = %q / %q", w.msgs[0].Key, w.msgs[0].Value)
	}

	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}

func TestProducerWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "t")
	if err := p.Publish(context.Background(), Event{Value: 1}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if err := p.Publish(context.Background(), Event{Value: make(chan int)}); err == nil {
		t.Error("expected marshal error")
	}
}

type fakeReader struct {
	errs      []error
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerCommitsOnlyHandled(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`ok`)},
		{Offset: 2, Value: []byte(`bad`)},
		{Offset: 3, Value: []byte(`ok`)},
	}}
	var seen int
	c := newConsumer(r, "t", func(_ context.Context, _ []byte, value []byte) error {
		seen++
		if string(value) == "bad" {
			return errors.New("rejected")
		}
		return nil
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if seen != 3 {
		t.Errorf("handled = %d, want 3", seen)
	}
	if len(r.committed) != 2 || r.committed[0] != 1 || r.committed[1] != 3 {
		t.Errorf("committed = %v, want [1 3]", r.committed)
	}
	if st := c.Stats(); st.Processed != 2 || st.Failed != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestConsumerRetriesFetchErrors(t *testing.T) {
	r := &fakeReader{
		errs: []error{errors.New("broker gone"), errors.New("broker gone")},
		msgs: []kafka.Message{{Offset: 7, Value: []byte(`ok`)}},
	}
	c := newConsumer(r, "t", func(context.Context, []byte, []byte) error { return nil })
	c.backoff = time.Millisecond
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(r.committed) != 1 || r.committed[0] != 7 {
		t.Errorf("committed = %v, want [7]", r.committed)
	}
}

func TestConsumerStopsOnCancelDuringBackoff(t *testing.T) {
	r := &fakeReader{errs: []error{errors.New("broker gone")}}
	c := newConsumer(r, "t", func(context.Context, []byte, []byte) error { return nil })
	c.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Version string `json:"version"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"version":"abc"}`))
	if err != nil || got.Version != "abc" {
		t.Errorf("got %+v err %v", got, err)
	}
	if _, err := DecodeJSON[payload]([]byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}
