package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimeOfDay(t *testing.T) {
	at, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	if at.Hour() != 9 || at.Minute() != 30 || at.String() != "09:30" {
		t.Errorf("Unexpected time %d:%d (%s)", at.Hour(), at.Minute(), at)
	}
	if got := at.Add(90).String(); got != "11:00" {
		t.Errorf("Expected 11:00, got %s", got)
	}

	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Error("Expected error for 25:00")
	}
	if NewTimeOfDay(24, 0).Valid() {
		t.Error("Expected 24:00 to be invalid")
	}

	day := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
	if got := at.On(day); !got.Equal(time.Date(2026, 10, 13, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("Unexpected On result %s", got)
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	var payload struct {
		At TimeOfDay `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"14:05"}`), &payload); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if payload.At != NewTimeOfDay(14, 5) {
		t.Errorf("Expected 14:05, got %s", payload.At)
	}

	if err := json.Unmarshal([]byte(`{"at":"2pm"}`), &payload); err == nil {
		t.Error("Expected error for malformed time")
	}
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2026-10-13")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Weekday() != time.Tuesday {
		t.Errorf("Expected Tuesday, got %s", d.Weekday())
	}

	local := time.Date(2026, 10, 13, 23, 15, 0, 0, time.FixedZone("MSK", 3*3600))
	if got := DateOnly(local); !got.Equal(d) {
		t.Errorf("Expected %s, got %s", d, got)
	}
	if !SameDate(local, d) {
		t.Error("Expected same calendar date")
	}
	if FormatDate(d) != "2026-10-13" {
		t.Errorf("Unexpected format %s", FormatDate(d))
	}
}

func TestMeetingStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to MeetingStatus
		want     bool
	}{
		{MeetingStatusNotBooked, MeetingStatusPending, true},
		{MeetingStatusPending, MeetingStatusConfirmed, true},
		{MeetingStatusConfirmed, MeetingStatusCompleted, true},
		{MeetingStatusPending, MeetingStatusCompleted, true},
		{MeetingStatusConfirmed, MeetingStatusPending, false},
		{MeetingStatusPending, MeetingStatusNotBooked, false},
		{MeetingStatusPending, MeetingStatusCancelled, true},
		{MeetingStatusNotBooked, MeetingStatusCancelled, true},
		{MeetingStatusCompleted, MeetingStatusCancelled, false},
		{MeetingStatusCancelled, MeetingStatusPending, false},
		{MeetingStatusConfirmed, "archived", false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestMeeting_Occupies(t *testing.T) {
	d, _ := ParseDate("2026-10-13")
	at := NewTimeOfDay(10, 0)
	m := &Meeting{Date: &d, Time: &at, Status: MeetingStatusConfirmed}

	if !m.Occupies(d, at) {
		t.Error("Expected confirmed meeting to occupy its slot")
	}
	if m.Occupies(d, NewTimeOfDay(11, 0)) {
		t.Error("Expected other time to be free")
	}

	m.Status = MeetingStatusCancelled
	if m.Occupies(d, at) {
		t.Error("Expected cancelled meeting to free its slot")
	}

	if (&Meeting{Status: MeetingStatusNotBooked}).Occupies(d, at) {
		t.Error("Expected not booked meeting without date to occupy nothing")
	}
}

func TestLevel(t *testing.T) {
	if !LevelFullAccess.AtLeast(LevelMeetingOnly) || LevelNoAccess.AtLeast(LevelMeetingOnly) {
		t.Error("Unexpected level ordering")
	}
	if Level("vip").Valid() {
		t.Error("Expected unknown level to be invalid")
	}
}

func TestOnboardingProgress_MarkSection(t *testing.T) {
	p := &OnboardingProgress{}
	for s := SectionCount; s >= 2; s-- {
		if p.MarkSection(s) {
			t.Fatalf("Expected incomplete after section %d", s)
		}
	}
	p.MarkSection(5)
	if len(p.CompletedSections) != SectionCount-1 {
		t.Errorf("Expected duplicate mark to be ignored, got %d sections", len(p.CompletedSections))
	}
	if !p.MarkSection(1) {
		t.Error("Expected completion after last section")
	}
	if p.CompletedSections[0] != 1 || p.CompletedSections[SectionCount-1] != SectionCount {
		t.Errorf("Expected sorted sections, got %v", p.CompletedSections)
	}
}
