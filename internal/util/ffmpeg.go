package util

import "os/exec"

// ResolveCommand returns the executable to run for a capture backend.
// If customPath is set, it must resolve through exec.LookPath; otherwise
// fallback is searched for in the system PATH.
// Returns an empty string if neither can be found.
func ResolveCommand(customPath, fallback string) string {
	if customPath != "" {
		if _, err := exec.LookPath(customPath); err == nil {
			return customPath
		}
		return ""
	}
	path, err := exec.LookPath(fallback)
	if err != nil {
		return ""
	}
	return path
}
