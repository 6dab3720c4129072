package extension

import "slices"

// Compatible reports whether the requested API major is in supported.
// Both sides are expected to be majors produced by [ExtractMajor].
func Compatible(requested string, supported []string) bool {
	return slices.Contains(supported, requested)
}

// CompatibleAny reports whether any requested major is supported.
// An empty request matches everything.
func CompatibleAny(requested, supported []string) bool {
	if len(requested) == 0 {
		return true
	}
	for _, r := range requested {
		if Compatible(r, supported) {
			return true
		}
	}
	return false
}

// SupportedVersions lists the distinct majors of vf, highest first.
func SupportedVersions(vf *VersionsFile) []string {
	if vf == nil {
		return nil
	}
	out := make([]string, 0, len(vf.Versions))
	for _, v := range vf.Versions {
		if !slices.Contains(out, v.APIVersion) {
			out = append(out, v.APIVersion)
		}
	}
	return out
}
