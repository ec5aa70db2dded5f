package service

import (
	"testing"

	"github.com/sla15/Dropoff/internal/domain"
)

func TestNextStatus_ForwardPath(t *testing.T) {
	steps := []struct {
		from  domain.RideStatus
		event domain.RideEvent
		want  domain.RideStatus
	}{
		{domain.RideStatusSearching, domain.EventAccepted, domain.RideStatusAccepted},
		{domain.RideStatusAccepted, domain.EventArrived, domain.RideStatusArrived},
		{domain.RideStatusArrived, domain.EventStarted, domain.RideStatusInProgress},
		{domain.RideStatusInProgress, domain.EventCompleted, domain.RideStatusCompleted},
	}

	for _, s := range steps {
		got, ok := NextStatus(s.from, s.event)
		if !ok {
			t.Errorf("%s + %s: expected a transition", s.from, s.event)
			continue
		}
		if got != s.want {
			t.Errorf("%s + %s: expected %s, got %s", s.from, s.event, s.want, got)
		}
	}
}

func TestNextStatus_CancellationFromEveryActiveState(t *testing.T) {
	active := []domain.RideStatus{
		domain.RideStatusSearching,
		domain.RideStatusAccepted,
		domain.RideStatusArrived,
		domain.RideStatusInProgress,
	}

	for _, from := range active {
		if got, ok := NextStatus(from, domain.EventCancelledByCustomer); !ok || got != domain.RideStatusCancelled {
			t.Errorf("%s + customer cancel: got (%s, %v)", from, got, ok)
		}
		if got, ok := NextStatus(from, domain.EventCancelledByDriver); !ok || got != domain.RideStatusCancelledCounterparty {
			t.Errorf("%s + driver cancel: got (%s, %v)", from, got, ok)
		}
	}
}

func TestNextStatus_TerminalStatesAcceptNothing(t *testing.T) {
	terminal := []domain.RideStatus{
		domain.RideStatusCompleted,
		domain.RideStatusCancelled,
		domain.RideStatusCancelledCounterparty,
	}
	events := []domain.RideEvent{
		domain.EventAccepted,
		domain.EventArrived,
		domain.EventStarted,
		domain.EventCompleted,
		domain.EventCancelledByCustomer,
		domain.EventCancelledByDriver,
		domain.EventNoDriversFound,
	}

	for _, from := range terminal {
		for _, event := range events {
			if _, ok := NextStatus(from, event); ok {
				t.Errorf("%s + %s: terminal states must not move", from, event)
			}
		}
	}
}

func TestNextStatus_ExhaustedSearchCancelsOnlyFromSearching(t *testing.T) {
	if got, ok := NextStatus(domain.RideStatusSearching, domain.EventNoDriversFound); !ok || got != domain.RideStatusCancelled {
		t.Errorf("searching + no drivers: got (%s, %v)", got, ok)
	}

	// Once a driver is on the way the event means nothing.
	for _, from := range []domain.RideStatus{
		domain.RideStatusAccepted,
		domain.RideStatusArrived,
		domain.RideStatusInProgress,
	} {
		if _, ok := NextStatus(from, domain.EventNoDriversFound); ok {
			t.Errorf("%s + no drivers must not transition", from)
		}
	}
}

func TestNextStatus_NoSkippingStates(t *testing.T) {
	// A trip cannot start before arrival, or complete before starting.
	if _, ok := NextStatus(domain.RideStatusSearching, domain.EventStarted); ok {
		t.Error("searching + started must not transition")
	}
	if _, ok := NextStatus(domain.RideStatusAccepted, domain.EventCompleted); ok {
		t.Error("accepted + completed must not transition")
	}
	if _, ok := NextStatus(domain.RideStatusAccepted, domain.EventStarted); ok {
		t.Error("accepted + started must not transition")
	}
}
