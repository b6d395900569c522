// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package htable

// Hash is djb2 (seed 5381, h = h*33 + c) over at most MaxKeyLen bytes of s.
func Hash(s string) uint32 {
	if len(s) > MaxKeyLen {
		s = s[:MaxKeyLen]
	}
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h<<5 + h + uint32(s[i])
	}
	return h
}
