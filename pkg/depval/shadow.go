package depval

import "sync"

// shadowed is the process-wide set of paths ShadowFile has marked. It is
// never retroactive: a Validation that already recorded a path's real
// state before ShadowFile was called keeps that recording until its next
// RegisterFileDependency call re-observes the path.
var shadowed sync.Map

// ShadowFile marks path so that subsequent GetDependentFileState calls
// report it as StatusShadowed, forcing anything that depends on it to be
// rebuilt. It fires no OnChange and leaves the recorded states and
// validation index of any Validation that has already recorded path
// untouched; IsFresh on such a Validation re-observes path and so reports
// it stale.
func ShadowFile(path string) {
	shadowed.Store(path, struct{}{})
}

// ClearShadow removes path's shadowed marking. Exposed mainly for tests;
// production code has no need to un-shadow a path within one process
// lifetime.
func ClearShadow(path string) {
	shadowed.Delete(path)
}

// IsShadowed reports whether path has been marked via ShadowFile.
func IsShadowed(path string) bool {
	_, ok := shadowed.Load(path)
	return ok
}

// ClearDependencyData resets all process-wide dependency validation state:
// the shadow set. Mirrors the original engine's Store::ClearDependencyData,
// used by tests and by tools that want to start a compile session from a
// clean slate.
func ClearDependencyData() {
	shadowed.Range(func(key, _ any) bool {
		shadowed.Delete(key)
		return true
	})
}
