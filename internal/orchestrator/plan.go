package orchestrator

import (
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"gosgi/internal/dependency"
	"gosgi/internal/module"
)

// Plan is the work one refresh performs. Every slice is in ascending
// (start level, bundle id) order; stop and refresh walk them backwards.
type Plan struct {
	// Uninstall holds uninstalled bundles whose modules are purged.
	Uninstall []BundleInfo
	// Refresh holds bundles that get a fresh revision and are re-resolved.
	Refresh []BundleInfo
	// Stop holds the running members of Refresh. They are stopped before
	// and restarted after.
	Stop []BundleInfo
}

// Plan computes what a refresh of requested would do without doing it.
func (o *Orchestrator) Plan(requested []module.BundleID) Plan {
	snap := o.host.Snapshot()

	roots := sets.New[module.BundleID](requested...)
	for id := range snap.Pending {
		roots.Insert(snap.Modules[id].Bundle)
	}
	roots.Delete(module.SystemBundleID)

	byBundle := make(map[module.BundleID][]module.ID)
	for _, id := range snap.IDs() {
		b := snap.Modules[id].Bundle
		byBundle[b] = append(byBundle[b], id)
	}

	// Grow the set until every bundle owning a module wired into the set is
	// part of it.
	graph := dependency.FromSnapshot(snap)
	members := roots.Clone()
	for {
		var seeds []module.ID
		for _, b := range sets.List(members) {
			seeds = append(seeds, byBundle[b]...)
		}
		grown := false
		for _, mid := range sets.List(graph.DependentsClosure(seeds...)) {
			b := snap.Modules[mid].Bundle
			if b != module.SystemBundleID && !members.Has(b) {
				members.Insert(b)
				grown = true
			}
		}
		if !grown {
			break
		}
	}

	var plan Plan
	for _, b := range sets.List(members) {
		info, ok := o.host.BundleInfo(b)
		if !ok {
			continue
		}
		if !o.startLevels {
			info.StartLevel = 1
		}
		if info.Uninstalled {
			plan.Uninstall = append(plan.Uninstall, info)
			continue
		}
		plan.Refresh = append(plan.Refresh, info)
		if info.Running {
			plan.Stop = append(plan.Stop, info)
		}
	}
	sortByStartLevel(plan.Uninstall)
	sortByStartLevel(plan.Refresh)
	sortByStartLevel(plan.Stop)
	return plan
}

func sortByStartLevel(infos []BundleInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].StartLevel != infos[j].StartLevel {
			return infos[i].StartLevel < infos[j].StartLevel
		}
		return infos[i].ID < infos[j].ID
	})
}
