// Package router implements the scoring and bookkeeping half of the
// Router/Dispatcher component: picking the best live extension
// for a job and tracking the resulting pending assignment until it
// resolves. The tick loop itself (rate limiter -> queue -> router -> send)
// lives in internal/dispatcher, which composes this package with
// internal/queue and internal/registry.
package router

import (
	"strconv"
	"strings"
)

// Capability match scores (the capability-match 40% scoring component).
const (
	scoreExactVersion     = 100.0
	scoreCompatibleVersion = 80.0
	scoreIncompatible     = 20.0
)

// capabilityScore compares a required capability version against what a
// session declared, major.minor semver-lite:
//   - exact version match -> 100
//   - same major, minor >= required -> 80 (compatible, newer or equal)
//   - otherwise -> 20 (incompatible)
func capabilityScore(required, have string) float64 {
	if required == have {
		return scoreExactVersion
	}
	reqMajor, reqMinor, okReq := parseMajorMinor(required)
	haveMajor, haveMinor, okHave := parseMajorMinor(have)
	if !okReq || !okHave {
		return scoreIncompatible
	}
	if reqMajor == haveMajor && haveMinor >= reqMinor {
		return scoreCompatibleVersion
	}
	return scoreIncompatible
}

// parseMajorMinor parses a loose "major.minor[.patch]" string, tolerating
// a leading "v" (e.g. "v1.4", "1.4.2").
func parseMajorMinor(version string) (major, minor int, ok bool) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
