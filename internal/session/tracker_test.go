package session

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTracker_ExpiresIdleSession(t *testing.T) {
	expired := make(chan int64, 1)
	tracker := NewTracker(20*time.Millisecond, 5*time.Millisecond, func(userID int64) {
		expired <- userID
	}, nil, zap.NewNop())

	tracker.Touch(42)

	select {
	case id := <-expired:
		if id != 42 {
			t.Fatalf("expired user %d, want 42", id)
		}
	case <-time.After(time.Second):
		t.Fatal("session did not expire")
	}

	if left := tracker.Remaining(42); left != 0 {
		t.Errorf("remaining after expiry = %v, want 0", left)
	}
}

func TestTracker_TouchResetsCountdown(t *testing.T) {
	tracker := NewTracker(time.Hour, time.Minute, nil, nil, zap.NewNop())

	tracker.Touch(1)
	first := tracker.Remaining(1)
	if first <= 0 || first > time.Hour {
		t.Fatalf("unexpected remaining %v", first)
	}

	time.Sleep(5 * time.Millisecond)
	tracker.Touch(1)

	if second := tracker.Remaining(1); second < first {
		t.Errorf("touch should reset countdown: before %v, after %v", first, second)
	}
}

func TestTracker_RemoveDoesNotFireExpire(t *testing.T) {
	fired := make(chan int64, 1)
	tracker := NewTracker(time.Hour, time.Minute, func(userID int64) {
		fired <- userID
	}, nil, zap.NewNop())

	tracker.Touch(7)
	tracker.Remove(7)

	select {
	case <-fired:
		t.Fatal("OnExpire called on explicit sign-out")
	default:
	}

	if tracker.Remaining(7) != 0 {
		t.Error("expected no session after remove")
	}
}

func TestTracker_UnknownUser(t *testing.T) {
	tracker := NewTracker(0, 0, nil, nil, zap.NewNop())
	if tracker.Remaining(99) != 0 {
		t.Error("expected zero remaining for unknown user")
	}
}
