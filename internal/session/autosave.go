package session

import "time"

// scheduleAutosaveLocked (re)arms the debounce timer. The write that fires
// uses the state at fire time, so a burst of changes produces one write.
func (c *Controller) scheduleAutosaveLocked() {
	if !c.settings.AutosaveProgress || c.completed || c.closed || !c.gateway.Available() {
		return
	}
	c.stopAutosaveLocked()
	c.autosaveGen++
	gen := c.autosaveGen
	c.bg.Add(1)
	c.autosaveTimer = time.AfterFunc(c.autosaveDelay, func() {
		defer c.bg.Done()
		c.flushAutosave(gen)
	})
}

func (c *Controller) stopAutosaveLocked() {
	if c.autosaveTimer == nil {
		return
	}
	if c.autosaveTimer.Stop() {
		c.bg.Done()
	}
	c.autosaveTimer = nil
}

func (c *Controller) flushAutosave(gen uint64) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	if gen != c.autosaveGen || c.completed || c.closed {
		c.mu.Unlock()
		return
	}
	c.autosaveTimer = nil
	answers := c.answers.Clone()
	index := c.currentIndex
	responseID := c.responseID
	c.mu.Unlock()

	c.gateway.SaveProgress(c.projectID, answers, index, responseID)
}
