package daemon

import (
	"testing"
	"time"

	"github.com/matheus3301/wpparchive/internal/bus"
	"github.com/matheus3301/wpparchive/internal/status"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWatchStatusLogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b := bus.New()
	m := status.NewMachine(b)

	stop := watchStatus(b, zap.New(core))
	walk := []status.State{status.Connecting, status.Archiving, status.Reconnecting}
	for _, s := range walk {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%s) = %v", s, err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for logs.FilterMessage("state changed").Len() < len(walk) {
		if time.Now().After(deadline) {
			t.Fatalf("logged %d transitions, want %d", logs.FilterMessage("state changed").Len(), len(walk))
		}
		time.Sleep(5 * time.Millisecond)
	}
	stop()

	entries := logs.FilterMessage("state changed").All()
	last := entries[len(entries)-1].ContextMap()
	if last["from"] != string(status.Archiving) || last["to"] != string(status.Reconnecting) {
		t.Errorf("last entry = %v, want ARCHIVING -> RECONNECTING", last)
	}

	// No logging after stop.
	if err := m.Transition(status.Connecting); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := logs.FilterMessage("state changed").Len(); n != len(walk) {
		t.Errorf("logged %d transitions after stop, want %d", n, len(walk))
	}
}
