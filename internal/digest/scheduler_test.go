package digest

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestScheduler_DispatchesAndClears(t *testing.T) {
	log := &fakeLog{records: []json.RawMessage{
		json.RawMessage(`{"type":"mail.opened","timestamp":"2026-03-09T14:00:00.000Z"}`),
	}}
	mailer := &captureMailer{}
	d := NewDispatcher(log, mailer, routedConfig(), zap.NewNop())

	s := NewScheduler(d, log, 10*time.Millisecond, true, zap.NewNop())
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mailer.count() >= 1 && log.cleared {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no dispatch within deadline: sends=%d cleared=%v", mailer.count(), log.cleared)
}

func TestScheduler_KeepsLogWhenClearDisabled(t *testing.T) {
	log := &fakeLog{records: []json.RawMessage{
		json.RawMessage(`{"type":"mail.opened","timestamp":"2026-03-09T14:00:00.000Z"}`),
	}}
	mailer := &captureMailer{}
	d := NewDispatcher(log, mailer, routedConfig(), zap.NewNop())

	s := NewScheduler(d, log, 10*time.Millisecond, false, zap.NewNop())
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && mailer.count() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if mailer.count() == 0 {
		t.Fatal("no dispatch within deadline")
	}
	if log.cleared {
		t.Error("log cleared despite clearAfter=false")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	log := &fakeLog{}
	d := NewDispatcher(log, &captureMailer{}, routedConfig(), zap.NewNop())

	s := NewScheduler(d, log, time.Hour, false, zap.NewNop())
	s.Start()
	s.Stop()
	s.Stop()
}
