package preflight

import (
	"csheet/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the folder checks for the given config. The media folder
// only needs to be readable; cache, log, and pack folders must be writable.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir, ReadOnly),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir, ReadWrite),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir, ReadWrite),
		CheckDirectoryAccess("Pack directory", cfg.Paths.PackDir, ReadWrite),
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
