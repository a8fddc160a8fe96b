package emitter

import "strings"

// licenseSignature pairs a set of literal substrings that must all
// appear in a candidate license file's content with the canonical
// bracketed identifier line spec.md §4.5 requires in their place.
// Detection is a literal case-insensitive substring test, not a fuzzy
// match, so the compressed output stays contract-stable across runs.
type licenseSignature struct {
	identifier string
	substrings []string
}

var licenseSignatures = []licenseSignature{
	{
		identifier: "[mit license - https://opensource.org/licenses/MIT]",
		substrings: []string{"permission is hereby granted, free of charge", "mit license"},
	},
	{
		identifier: "[apache license 2.0 - https://www.apache.org/licenses/LICENSE-2.0]",
		substrings: []string{"apache license", "version 2.0"},
	},
	{
		identifier: "[gpl-3.0 - https://www.gnu.org/licenses/gpl-3.0.html]",
		substrings: []string{"gnu general public license", "version 3"},
	},
	{
		identifier: "[gpl-2.0 - https://www.gnu.org/licenses/gpl-2.0.html]",
		substrings: []string{"gnu general public license", "version 2"},
	},
	{
		identifier: "[lgpl - https://www.gnu.org/licenses/lgpl-3.0.html]",
		substrings: []string{"gnu lesser general public license"},
	},
	{
		identifier: "[agpl-3.0 - https://www.gnu.org/licenses/agpl-3.0.html]",
		substrings: []string{"gnu affero general public license"},
	},
	{
		identifier: "[bsd-3-clause - https://opensource.org/licenses/BSD-3-Clause]",
		substrings: []string{"redistributions in binary form", "neither the name"},
	},
	{
		identifier: "[bsd-2-clause - https://opensource.org/licenses/BSD-2-Clause]",
		substrings: []string{"redistributions in binary form"},
	},
	{
		identifier: "[isc license - https://opensource.org/licenses/ISC]",
		substrings: []string{"permission to use, copy, modify, and/or distribute this software"},
	},
	{
		identifier: "[mpl-2.0 - https://www.mozilla.org/en-US/MPL/2.0/]",
		substrings: []string{"mozilla public license"},
	},
	{
		identifier: "[unlicense - https://unlicense.org/]",
		substrings: []string{"this is free and unencumbered software released into the public domain"},
	},
	{
		identifier: "[cc0 - https://creativecommons.org/publicdomain/zero/1.0/]",
		substrings: []string{"creative commons", "cc0"},
	},
}

// isLicensePath reports whether a repo-relative path is a candidate
// for license compression (spec.md §4.5: contains "license",
// "licence", or "copying", case-insensitive).
func isLicensePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "license") ||
		strings.Contains(lower, "licence") ||
		strings.Contains(lower, "copying")
}

// compressLicense returns the canonical bracketed identifier for
// content matching a recognized license signature, or ok=false if no
// signature matches.
func compressLicense(content string) (identifier string, ok bool) {
	lower := strings.ToLower(content)
	for _, sig := range licenseSignatures {
		matched := true
		for _, s := range sig.substrings {
			if !strings.Contains(lower, s) {
				matched = false
				break
			}
		}
		if matched {
			return sig.identifier, true
		}
	}
	return "", false
}
