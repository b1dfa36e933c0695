package ota

import (
	"strconv"
	"strings"
)

// parseVersion splits a dotted version string into numeric parts.
// Non-numeric parts count as zero.
func parseVersion(version string) []int {
	parts := strings.Split(version, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		nums[i] = n
	}
	return nums
}

// isNewerVersion reports whether next is strictly newer than current, by
// numeric dot-part comparison. Missing parts compare as zero, so 1.2 and
// 1.2.0 are equal.
func isNewerVersion(current, next string) bool {
	cur := parseVersion(current)
	nxt := parseVersion(next)
	n := len(cur)
	if len(nxt) > n {
		n = len(nxt)
	}
	for i := 0; i < n; i++ {
		var c, x int
		if i < len(cur) {
			c = cur[i]
		}
		if i < len(nxt) {
			x = nxt[i]
		}
		if x != c {
			return x > c
		}
	}
	return false
}
