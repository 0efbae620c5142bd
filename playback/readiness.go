package playback

const nalTypeSPS = 7

// containsParameterSet implements spec.md §4.8's readiness gate: walk the
// byte stream for Annex-B start codes (00 00 00 01 or 00 00 01) and examine
// the low 5 bits of the byte that follows each one for NAL unit type 7
// (sequence parameter set).
func containsParameterSet(data []byte) bool {
	for i := 0; i < len(data); i++ {
		nalStart, ok := matchStartCode(data, i)
		if !ok {
			continue
		}
		if nalStart >= len(data) {
			continue
		}
		nalType := data[nalStart] & 0x1f
		if nalType == nalTypeSPS {
			return true
		}
	}
	return false
}

// matchStartCode reports whether a start code begins at i, and if so the
// index of the NAL header byte immediately following it.
func matchStartCode(data []byte, i int) (int, bool) {
	if i+3 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
		return i + 4, true
	}
	if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
		return i + 3, true
	}
	return 0, false
}
