// Package gesture implements the open-palm capture trigger for the
// photobooth kiosk.
package gesture

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/detector"
)

// DefaultCooldown is the minimum dwell time between two triggers.
const DefaultCooldown = 3 * time.Second

// Outcome classifies the result of evaluating one frame.
type Outcome string

const (
	// OutcomePalmDetected means an open palm fired the capture trigger.
	OutcomePalmDetected Outcome = "palm_detected"
	// OutcomeCooldown means an open palm was seen but the cooldown window
	// from the previous trigger has not elapsed.
	OutcomeCooldown Outcome = "cooldown_active"
	// OutcomeHandNotOpen means a hand was detected but it is not an open palm.
	OutcomeHandNotOpen Outcome = "hand_not_open"
	// OutcomeNoHand means no hand was detected in the frame.
	OutcomeNoHand Outcome = "no_hand"
	// OutcomeError means the frame could not be evaluated.
	OutcomeError Outcome = "error"
)

// Result is the decision for one evaluated frame.
type Result struct {
	Outcome   Outcome
	Message   string
	Remaining float64 // seconds left in the cooldown window, one decimal place
}

// Triggered reports whether this result fired the capture trigger.
func (r Result) Triggered() bool {
	return r.Outcome == OutcomePalmDetected
}

// ErrorResult builds the result for a frame that could not be evaluated,
// e.g. undecodable input or a detector failure.
func ErrorResult(err error) Result {
	return Result{
		Outcome: OutcomeError,
		Message: fmt.Sprintf("Error: %v", err),
	}
}

// Trigger is the per-station gesture state machine. A single instance is
// shared by all detection requests; the cooldown clock is guarded so that at
// most one trigger fires per window even under concurrent calls.
type Trigger struct {
	mu          sync.Mutex
	lastTrigger time.Time
	cooldown    time.Duration
	now         func() time.Time
}

// NewTrigger creates a Trigger with the given cooldown window.
// A non-positive cooldown falls back to DefaultCooldown.
func NewTrigger(cooldown time.Duration) *Trigger {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Trigger{
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Evaluate classifies one frame's detection results and, when an open palm is
// present outside the cooldown window, fires the trigger. The lock covers only
// the trigger decision, never any detector or model call.
func (t *Trigger) Evaluate(hands []detector.HandLandmarks) Result {
	if len(hands) == 0 {
		return Result{Outcome: OutcomeNoHand, Message: "No hand detected"}
	}

	for i := range hands {
		if !IsPalmOpen(&hands[i]) {
			continue
		}

		t.mu.Lock()
		now := t.now()
		elapsed := now.Sub(t.lastTrigger)
		if elapsed > t.cooldown {
			t.lastTrigger = now
			t.mu.Unlock()
			return Result{Outcome: OutcomePalmDetected, Message: "Palm detected"}
		}
		t.mu.Unlock()

		remaining := (t.cooldown - elapsed).Seconds()
		if remaining < 0 {
			remaining = 0
		}
		remaining = math.Round(remaining*10) / 10
		return Result{
			Outcome:   OutcomeCooldown,
			Message:   fmt.Sprintf("Cooldown active, wait %.1fs", remaining),
			Remaining: remaining,
		}
	}

	return Result{Outcome: OutcomeHandNotOpen, Message: "Hand detected but palm not open"}
}

// Reset clears the cooldown clock so the next qualifying palm fires
// immediately. Exposed to operators for clearing a stuck cooldown.
func (t *Trigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTrigger = time.Time{}
}

// IsPalmOpen reports whether the hand is showing an open palm: at least four
// of the five fingers classified as extended.
//
// Non-thumb fingers count as extended when the tip sits above its knuckle in
// image space (smaller y). The thumb counts as extended when the horizontal
// tip/knuckle gap exceeds 0.1 normalized units; this is deliberately
// insensitive to handedness and rotation to match observed trigger behavior.
func IsPalmOpen(h *detector.HandLandmarks) bool {
	if h == nil {
		return false
	}
	return extendedFingers(h) >= 4
}

func extendedFingers(h *detector.HandLandmarks) int {
	tips := [4]int{detector.IndexTip, detector.MiddleTip, detector.RingTip, detector.PinkyTip}
	bases := [4]int{detector.IndexMCP, detector.MiddleMCP, detector.RingMCP, detector.PinkyMCP}

	count := 0
	for i := 0; i < 4; i++ {
		if h.Points[tips[i]].Y < h.Points[bases[i]].Y {
			count++
		}
	}

	if math.Abs(h.Points[detector.ThumbTip].X-h.Points[detector.ThumbMCP].X) > 0.1 {
		count++
	}

	return count
}
