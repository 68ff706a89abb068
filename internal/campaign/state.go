package campaign

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a status change is not allowed
// from the campaign's current status.
var ErrInvalidTransition = errors.New("invalid campaign status transition")

// Launch moves a draft campaign into the running lifecycle. The campaign
// becomes active when its first dispatch is due now or in the past,
// scheduled otherwise. Launching is optimistic: actual sends are
// confirmed back through the tracking event stream.
func (c *Campaign) Launch(firstDispatch, now time.Time) error {
	if c.Status != StatusDraft {
		return fmt.Errorf("%w: launch from %q", ErrInvalidTransition, c.Status)
	}
	launched := now
	c.LaunchedAt = &launched
	// NextDispatchAt is set in both branches; the scheduler only picks
	// up campaigns with a pending dispatch instant.
	c.NextDispatchAt = &firstDispatch
	if firstDispatch.After(now) {
		c.Status = StatusScheduled
	} else {
		c.Status = StatusActive
	}
	return nil
}

// Activate moves a scheduled campaign to active once its dispatch time
// arrives.
func (c *Campaign) Activate() error {
	if c.Status != StatusScheduled {
		return fmt.Errorf("%w: activate from %q", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusActive
	return nil
}

// Pause suspends an active campaign.
func (c *Campaign) Pause() error {
	if c.Status != StatusActive {
		return fmt.Errorf("%w: pause from %q", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusPaused
	return nil
}

// Resume reactivates a paused campaign.
func (c *Campaign) Resume() error {
	if c.Status != StatusPaused {
		return fmt.Errorf("%w: resume from %q", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusActive
	return nil
}

// Complete finishes an active campaign once all planned dispatches have
// fired and the schedule is non-recurring or has reached its end date.
// Completed is terminal.
func (c *Campaign) Complete() error {
	if c.Status != StatusActive {
		return fmt.Errorf("%w: complete from %q", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusCompleted
	c.NextDispatchAt = nil
	return nil
}

// Cancel stops a recurring campaign. Cancelled is terminal.
func (c *Campaign) Cancel() error {
	if c.Terminal() {
		return fmt.Errorf("%w: cancel from %q", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusCancelled
	c.NextDispatchAt = nil
	return nil
}
