package driver

import (
	"errors"
	"testing"

	"github.com/uxav/AVnetCore-sub001/internal/av"
)

func TestSubscribeVideoStatus(t *testing.T) {
	bus := newFakeBus()
	env := newTestEnv(t)
	src := mustSource(t, env, av.SourceOptions{ID: 3})

	if err := SubscribeVideoStatus(bus, 1, env); err != nil {
		t.Fatalf("SubscribeVideoStatus: %v", err)
	}

	if err := bus.deliver("avnet/state/source/3/video", []byte(`{"active":true}`)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !src.HasActiveVideo() {
		t.Error("HasActiveVideo() = false after active report")
	}
	if err := bus.deliver("avnet/state/source/3/video", []byte(`{"active":false}`)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if src.HasActiveVideo() {
		t.Error("HasActiveVideo() = true after inactive report")
	}

	if err := bus.deliver("avnet/state/source/99/video", []byte(`{"active":true}`)); !errors.Is(err, av.ErrSourceNotFound) {
		t.Errorf("unknown source: err = %v, want ErrSourceNotFound", err)
	}
	if err := bus.deliver("avnet/state/source/3/video", []byte(`nope`)); err == nil {
		t.Error("bad payload: err = nil")
	}
}
