package clock

import (
	"testing"
	"time"
)

func TestVirtual_AfterFiresOnce(t *testing.T) {
	clk := NewVirtual()
	fired := 0
	h := clk.After(100*time.Millisecond, func() { fired++ })

	clk.Advance(50 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("Expected no fire before due, got %d", fired)
	}
	if !h.Active() {
		t.Error("Expected handle to be active before due")
	}

	clk.Advance(50 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("Expected 1 fire at due time, got %d", fired)
	}
	if h.Active() {
		t.Error("Expected one-shot handle to be inactive after firing")
	}

	clk.Advance(time.Second)
	if fired != 1 {
		t.Errorf("Expected one-shot to fire once, got %d", fired)
	}
}

func TestVirtual_Cancel(t *testing.T) {
	clk := NewVirtual()
	fired := false
	h := clk.After(time.Second, func() { fired = true })

	if !h.Cancel() {
		t.Error("Expected Cancel to report an active timer")
	}
	if h.Cancel() {
		t.Error("Expected second Cancel to report inactive")
	}

	clk.Advance(2 * time.Second)
	if fired {
		t.Error("Cancelled timer fired")
	}
	if clk.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", clk.Pending())
	}
}

func TestVirtual_EveryFiresRepeatedlyWithinOneAdvance(t *testing.T) {
	clk := NewVirtual()
	var at []time.Duration
	h := clk.Every(100*time.Millisecond, func() { at = append(at, clk.Now()) })

	clk.Advance(350 * time.Millisecond)
	if len(at) != 3 {
		t.Fatalf("Expected 3 pulses, got %d", len(at))
	}
	for i, want := range []time.Duration{100, 200, 300} {
		if at[i] != want*time.Millisecond {
			t.Errorf("Pulse %d: expected Now=%v, got %v", i, want*time.Millisecond, at[i])
		}
	}
	if clk.Now() != 350*time.Millisecond {
		t.Errorf("Expected Now=350ms after advance, got %v", clk.Now())
	}

	h.Cancel()
	clk.Advance(time.Second)
	if len(at) != 3 {
		t.Errorf("Expected no pulses after cancel, got %d", len(at))
	}
}

func TestVirtual_CallbackCanCancelItself(t *testing.T) {
	clk := NewVirtual()
	count := 0
	var h Handle
	h = clk.Every(10*time.Millisecond, func() {
		count++
		if count == 2 {
			h.Cancel()
		}
	})

	clk.Advance(time.Second)
	if count != 2 {
		t.Errorf("Expected self-cancel after 2 pulses, got %d", count)
	}
}

func TestVirtual_OrderingAndNestedScheduling(t *testing.T) {
	clk := NewVirtual()
	var order []string

	clk.After(20*time.Millisecond, func() { order = append(order, "b") })
	clk.After(10*time.Millisecond, func() {
		order = append(order, "a")
		clk.After(5*time.Millisecond, func() { order = append(order, "nested") })
	})
	clk.After(20*time.Millisecond, func() { order = append(order, "c") })

	clk.Advance(30 * time.Millisecond)

	want := []string{"a", "nested", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestVirtual_InvalidInputs(t *testing.T) {
	clk := NewVirtual()

	if h := clk.Every(0, func() {}); h.Active() {
		t.Error("Expected zero interval Every to be inactive")
	}
	if h := clk.After(time.Second, nil); h.Active() {
		t.Error("Expected nil callback to be inactive")
	}

	fired := false
	clk.After(-time.Second, func() { fired = true })
	clk.Advance(-time.Second)
	if !fired {
		t.Error("Expected negative delay to fire on next Advance")
	}
	if clk.Now() != 0 {
		t.Errorf("Expected negative advance to leave time unchanged, got %v", clk.Now())
	}
}
