package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type fakeSender struct {
	mu     sync.Mutex
	texts  []string
	photos []kit.Photo
	fail   error
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return kit.MessageRef{}, f.fail
	}
	f.texts = append(f.texts, to.ChatID+":"+text)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeSender) SendPhoto(_ context.Context, to kit.ChatTarget, p kit.Photo) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return kit.MessageRef{}, f.fail
	}
	f.photos = append(f.photos, p)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func TestSendTextAndPhoto(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(Config{DedupWindow: time.Minute}, fs, logx.Nop(), nil)

	if err := s.Send(context.Background(), Message{GroupID: "-100", Text: "hi"}); err != nil {
		t.Fatalf("text: %v", err)
	}
	if err := s.Send(context.Background(), Message{GroupID: "-100", Text: "cap", Image: []byte{1, 2}}); err != nil {
		t.Fatalf("photo: %v", err)
	}
	if len(fs.texts) != 1 || fs.texts[0] != "-100:hi" {
		t.Fatalf("texts = %v", fs.texts)
	}
	if len(fs.photos) != 1 || fs.photos[0].Caption != "cap" {
		t.Fatalf("photos = %+v", fs.photos)
	}
}

func TestSendDedupsByKey(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(Config{DedupWindow: time.Minute}, fs, logx.Nop(), nil)
	m := Message{GroupID: "g", Text: "x", Key: "g@1"}
	if err := s.Send(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(context.Background(), m); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second send err = %v, want ErrDuplicate", err)
	}
	m.Key = "g@2"
	if err := s.Send(context.Background(), m); err != nil {
		t.Fatalf("different key should send: %v", err)
	}
	if len(fs.texts) != 2 {
		t.Fatalf("texts = %v", fs.texts)
	}
}

func TestSendFailureDoesNotConsumeDedup(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{fail: errors.New("boom")}
	s := New(Config{DedupWindow: time.Minute}, fs, logx.Nop(), nil)
	m := Message{GroupID: "g", Text: "x", Key: "k"}
	if err := s.Send(context.Background(), m); err == nil {
		t.Fatal("expected transport error")
	}
	fs.mu.Lock()
	fs.fail = nil
	fs.mu.Unlock()
	if err := s.Send(context.Background(), m); err != nil {
		t.Fatalf("retry by caller should pass dedup: %v", err)
	}
}

func TestSendRequiresTargetAndSender(t *testing.T) {
	t.Parallel()
	if err := New(Config{}, &fakeSender{}, logx.Nop(), nil).Send(context.Background(), Message{Text: "x"}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("err = %v", err)
	}
	if err := New(Config{}, nil, logx.Nop(), nil).Send(context.Background(), Message{GroupID: "g"}); !errors.Is(err, ErrNoSender) {
		t.Fatalf("err = %v", err)
	}
}

func TestDedupCap(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSender{}, logx.Nop(), nil)
	for _, k := range []string{"a", "b", "c"} {
		if !s.dedupAllow(k, time.Minute, 2) {
			t.Fatalf("%s should pass", k)
		}
	}
	if len(s.dedup) != 2 {
		t.Fatalf("dedup size = %d", len(s.dedup))
	}
}

func TestApplyChangesDedupWindow(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(Config{DedupWindow: time.Minute}, fs, logx.Nop(), nil)
	m := Message{GroupID: "g", Text: "x", Key: "g@1"}
	if err := s.Send(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	s.Apply(Config{RatePerSec: 50})
	if err := s.Send(context.Background(), m); err != nil {
		t.Fatalf("dedup disabled by Apply, got %v", err)
	}
	if len(fs.texts) != 2 {
		t.Fatalf("texts = %v", fs.texts)
	}
}
