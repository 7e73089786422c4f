package core

import (
	"fmt"
	"sync"
)

// GlobalPoolName is the task-pool identifier used when no tenant-scoped
// pool is requested (spec.md §4.6 "the global task-pool identifier").
const GlobalPoolName = "global"

// poolRegistry tracks which named task pools are currently live. The
// task package registers/unregisters pools here so core.TaskSupervisor
// can answer "is this pool running" without importing task (which in
// turn imports core) — a plain map would work since Go forbids import
// cycles, but a registry one layer down avoids ever needing one.
var (
	poolRegistry   = map[string]bool{GlobalPoolName: true}
	poolRegistryMu sync.RWMutex
)

// RegisterPool marks a named task pool as live.
func RegisterPool(name string) {
	poolRegistryMu.Lock()
	defer poolRegistryMu.Unlock()
	poolRegistry[name] = true
}

// UnregisterPool marks a named task pool as no longer live.
func UnregisterPool(name string) {
	poolRegistryMu.Lock()
	defer poolRegistryMu.Unlock()
	delete(poolRegistry, name)
}

// poolIsLive reports whether name is currently a registered pool.
func poolIsLive(name string) bool {
	poolRegistryMu.RLock()
	defer poolRegistryMu.RUnlock()
	return poolRegistry[name]
}

// TaskSupervisor resolves the task-pool identifier per spec.md §4.6:
//   - task_supervisor opt, if present, wins outright
//   - else if jido is absent/empty, the global pool
//   - else "<jido>.TaskSupervisor", raising ConfigError if that pool
//     isn't currently registered as running
func TaskSupervisor(opts RunOpts) (string, *Error) {
	if opts.TaskSupervisor != nil && *opts.TaskSupervisor != "" {
		return *opts.TaskSupervisor, nil
	}
	if opts.Jido == nil || *opts.Jido == "" {
		return GlobalPoolName, nil
	}
	name := fmt.Sprintf("%s.TaskSupervisor", *opts.Jido)
	if !poolIsLive(name) {
		return "", Wrap(ConfigError, fmt.Sprintf("task supervisor %q is not running", name), ErrUnknownPool, map[string]interface{}{
			"jido": *opts.Jido,
			"pool": name,
		})
	}
	return name, nil
}

// TaskSupervisorName resolves the same name as TaskSupervisor but never
// checks liveness (spec.md §4.6: "used for early resolution").
func TaskSupervisorName(opts RunOpts) string {
	if opts.TaskSupervisor != nil && *opts.TaskSupervisor != "" {
		return *opts.TaskSupervisor
	}
	if opts.Jido == nil || *opts.Jido == "" {
		return GlobalPoolName
	}
	return fmt.Sprintf("%s.TaskSupervisor", *opts.Jido)
}
