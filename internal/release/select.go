package release

func Latest(s Set) *Release {
	var latest *Release
	for _, r := range s {
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest
}

// LatestStable is Latest restricted to releases that are not marked as
// pre-release. It returns nil if no such release exists.
func LatestStable(s Set) *Release {
	var latest *Release
	for _, r := range s {
		if r.PreRelease {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest
}

func Select(s Set, includePreRelease bool) *Release {
	if includePreRelease {
		return Latest(s)
	}
	return LatestStable(s)
}
