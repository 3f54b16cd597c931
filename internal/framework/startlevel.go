package framework

import (
	"fmt"
	"sort"

	"gosgi/internal/events"
	"gosgi/internal/module"
	"gosgi/pkg/logging"
)

// StartLevel returns the active framework start level.
func (f *Framework) StartLevel() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.startLevel
}

// SetStartLevel moves the framework to level, starting marked bundles on
// the way up and stopping active ones on the way down, one level at a time.
// A STARTLEVEL_CHANGED event is fired when done.
func (f *Framework) SetStartLevel(level int) error {
	if level < 1 {
		return fmt.Errorf("start level must be at least 1, got %d", level)
	}
	if !f.cfg.StartLevel.Enabled {
		return fmt.Errorf("start levels are disabled")
	}
	if err := f.checkActive("change start level of"); err != nil {
		return err
	}
	f.setStartLevel(level, true)
	return nil
}

func (f *Framework) setStartLevel(target int, notify bool) {
	f.startLevelMu.Lock()
	defer f.startLevelMu.Unlock()

	current := f.StartLevel()
	enabled := f.cfg.StartLevel.Enabled

	for current < target {
		current++
		f.mu.Lock()
		f.startLevel = current
		f.mu.Unlock()
		for _, b := range f.bundlesAtLevel(current, enabled) {
			if !b.AutoStart() {
				continue
			}
			f.startTransient(b)
		}
	}
	for current > target {
		bundles := f.bundlesAtLevel(current, enabled)
		for i := len(bundles) - 1; i >= 0; i-- {
			f.stopTransient(bundles[i])
		}
		current--
		f.mu.Lock()
		f.startLevel = current
		f.mu.Unlock()
	}

	if notify {
		logging.Info("Framework", "Framework start level changed to %d", target)
		f.events.Fire(events.Event{
			Reason:       events.ReasonStartLevelChanged,
			Bundle:       module.SystemBundleID,
			SymbolicName: SystemBundleSymbolicName,
			StartLevel:   target,
		})
	}
}

// bundlesAtLevel returns the non-system bundles whose effective start level
// is level, ordered by id.
func (f *Framework) bundlesAtLevel(level int, enabled bool) []*Bundle {
	var res []*Bundle
	for _, b := range f.Bundles() {
		if b.id == module.SystemBundleID {
			continue
		}
		if b.effectiveStartLevel(enabled) == level {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].id < res[j].id })
	return res
}

func (f *Framework) startTransient(b *Bundle) {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()
	if err := f.startLocked(b); err != nil && !IsActivationError(err) {
		// Activation failures already fired an ERROR event.
		f.fireError(b, err)
	}
}

func (f *Framework) stopTransient(b *Bundle) {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()
	if err := f.stopLocked(b, false); err != nil && !IsActivationError(err) {
		f.fireError(b, err)
	}
}

// SetBundleStartLevel changes the start level of a bundle and starts or
// stops it when the new level crosses the framework level.
func (f *Framework) SetBundleStartLevel(id module.BundleID, level int) error {
	if id == module.SystemBundleID {
		return fmt.Errorf("cannot change the start level of the system bundle")
	}
	if level < 1 {
		return fmt.Errorf("start level must be at least 1, got %d", level)
	}
	b, err := f.Bundle(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.startLevel = level
	b.mu.Unlock()
	if err := f.saveRecord(b); err != nil {
		logging.Error("Framework", err, "Failed to persist start level of bundle %d", id)
	}

	if !f.cfg.StartLevel.Enabled || f.checkActive("") != nil {
		return nil
	}
	fwLevel := f.StartLevel()
	switch {
	case level > fwLevel && b.State() == StateActive:
		f.stopTransient(b)
	case level <= fwLevel && b.AutoStart() && b.State() != StateActive:
		f.startTransient(b)
	}
	return nil
}

// InitialBundleStartLevel returns the start level assigned to newly installed bundles.
func (f *Framework) InitialBundleStartLevel() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.initialBundleLevel
}

// SetInitialBundleStartLevel changes the start level assigned to newly installed bundles.
func (f *Framework) SetInitialBundleStartLevel(level int) error {
	if level < 1 {
		return fmt.Errorf("start level must be at least 1, got %d", level)
	}
	f.mu.Lock()
	f.initialBundleLevel = level
	f.mu.Unlock()
	return nil
}
