package vision

import (
	"testing"
	"time"
)

func TestValidateCoordinate_WithinBounds_NoChange(t *testing.T) {
	cx, cy, clamped, unsafe := ValidateCoordinate(960, 540, 1920, 1080, DefaultMargin, DefaultClampTolerance)
	if clamped || unsafe {
		t.Fatalf("clamped=%v unsafe=%v, want neither for a centered point", clamped, unsafe)
	}
	if cx != 960 || cy != 540 {
		t.Fatalf("got (%d,%d), want unchanged (960,540)", cx, cy)
	}
}

func TestValidateCoordinate_ClampsNearHighEdge(t *testing.T) {
	// spec scenario 8: w=1920 h=1080 x=1923 margin=5 tolerance=10 -> clamp to 1914.
	cx, _, clamped, unsafe := ValidateCoordinate(1923, 540, 1920, 1080, 5, 10)
	if unsafe {
		t.Fatal("expected clamp, not rejection")
	}
	if !clamped {
		t.Fatal("expected clamped=true")
	}
	if cx != 1914 {
		t.Fatalf("cx = %d, want 1914", cx)
	}
}

func TestValidateCoordinate_RejectsFarOutOfBounds(t *testing.T) {
	_, _, clamped, unsafe := ValidateCoordinate(2500, 540, 1920, 1080, 5, 10)
	if clamped {
		t.Fatal("point far outside tolerance should be rejected, not clamped")
	}
	if !unsafe {
		t.Fatal("expected unsafe=true")
	}
}

func TestValidateCoordinate_ClampsNearLowEdge(t *testing.T) {
	cx, _, clamped, unsafe := ValidateCoordinate(-3, 540, 1920, 1080, 5, 10)
	if unsafe {
		t.Fatal("expected clamp, not rejection")
	}
	if !clamped || cx != 5 {
		t.Fatalf("cx=%d clamped=%v, want clamped to margin 5", cx, clamped)
	}
}

func TestValidateCoordinate_RejectsFarBelowLowEdge(t *testing.T) {
	_, _, clamped, unsafe := ValidateCoordinate(-50, 540, 1920, 1080, 5, 10)
	if clamped {
		t.Fatal("point far below margin should be rejected, not clamped")
	}
	if !unsafe {
		t.Fatal("expected unsafe=true")
	}
}

func TestHistory_EvictsOldestAtCapacity(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(HistoryEntry{Action: ActionClick, Timestamp: time.Unix(int64(i), 0)})
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	entries := h.Entries()
	if entries[0].Timestamp.Unix() != 2 {
		t.Fatalf("oldest surviving entry = %v, want timestamp 2 (entries 0,1 evicted)", entries[0].Timestamp)
	}
	if entries[2].Timestamp.Unix() != 4 {
		t.Fatalf("newest entry = %v, want timestamp 4", entries[2].Timestamp)
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 15; i++ {
		h.Append(HistoryEntry{Action: ActionNoAction})
	}
	if h.Len() != 10 {
		t.Fatalf("len = %d, want default capacity 10", h.Len())
	}
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(5)
	h.Append(HistoryEntry{Action: ActionClick})
	h.Reset()
	if h.Len() != 0 {
		t.Fatalf("len = %d, want 0 after Reset", h.Len())
	}
}

func TestAction_IsClickVariant(t *testing.T) {
	clickLike := []Action{ActionClick, ActionDoubleClick, ActionRightClick}
	for _, a := range clickLike {
		if !a.IsClickVariant() {
			t.Errorf("%s: expected IsClickVariant true", a)
		}
	}
	notClick := []Action{ActionType, ActionNoAction, ActionComplete}
	for _, a := range notClick {
		if a.IsClickVariant() {
			t.Errorf("%s: expected IsClickVariant false", a)
		}
	}
}
