package deploy

import (
	"bytes"
	"strings"
	"time"

	"gosgi/internal/framework"
	"gosgi/internal/module"
	"gosgi/pkg/logging"
)

// refreshTimeout bounds how long a deploy waits for a package refresh.
const refreshTimeout = time.Minute

// FrameworkTarget applies deploy changes to a framework.
type FrameworkTarget struct {
	fw        *framework.Framework
	autoStart bool
}

// NewFrameworkTarget returns a target for fw. With autoStart, newly
// installed bundles are marked for start.
func NewFrameworkTarget(fw *framework.Framework, autoStart bool) *FrameworkTarget {
	return &FrameworkTarget{fw: fw, autoStart: autoStart}
}

// Deploy installs the bundle or updates it when its descriptor changed.
func (t *FrameworkTarget) Deploy(location string, data []byte) error {
	if b, ok := t.fw.BundleByLocation(location); ok {
		if bytes.Equal(b.Metadata().Raw, data) {
			return nil
		}
		if err := b.Update(bytes.NewReader(data)); err != nil {
			return err
		}
		logging.Info("Deploy", "Updated %s from %s", b, location)
		t.refresh(b.ID())
		return nil
	}

	b, err := t.fw.Install(location, bytes.NewReader(data))
	if err != nil {
		return err
	}
	logging.Info("Deploy", "Installed %s from %s", b, location)
	if t.autoStart {
		if err := b.Start(); err != nil {
			// The start mark stays set; Settle retries once dependencies arrive.
			logging.Warn("Deploy", "Bundle %s not started yet: %v", b, err)
		}
	}
	return nil
}

// Undeploy uninstalls the bundle and refreshes packages so dependents let
// go of it.
func (t *FrameworkTarget) Undeploy(location string) error {
	b, ok := t.fw.BundleByLocation(location)
	if !ok {
		return nil
	}
	if err := b.Uninstall(); err != nil {
		return err
	}
	logging.Info("Deploy", "Uninstalled %s from %s", b, location)
	t.refresh()
	return nil
}

// Locations lists the installed bundle locations starting with prefix.
func (t *FrameworkTarget) Locations(prefix string) []string {
	var res []string
	for _, b := range t.fw.Bundles() {
		if strings.HasPrefix(b.Location(), prefix) {
			res = append(res, b.Location())
		}
	}
	return res
}

// Settle starts bundles marked for start that are not running, which
// covers bundles whose dependencies were deployed after them.
func (t *FrameworkTarget) Settle() {
	for _, b := range t.fw.Bundles() {
		if b.ID() == module.SystemBundleID || !b.AutoStart() {
			continue
		}
		switch b.State() {
		case framework.StateInstalled, framework.StateResolved:
		default:
			continue
		}
		if err := b.Start(); err != nil {
			logging.Debug("Deploy", "Bundle %s still not startable: %v", b, err)
		}
	}
}

func (t *FrameworkTarget) refresh(ids ...module.BundleID) {
	select {
	case out := <-t.fw.RefreshPackages(ids...):
		if out.Discarded {
			logging.Warn("Deploy", "Package refresh of %v discarded, framework is stopping", ids)
		}
	case <-time.After(refreshTimeout):
		logging.Warn("Deploy", "Package refresh did not finish within %s", refreshTimeout)
	}
}
