package playback

import "testing"

func TestContainsParameterSetDetectsFourByteStartCode(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00}
	if !containsParameterSet(data) {
		t.Fatal("expected SPS (NAL type 7) to be detected")
	}
}

func TestContainsParameterSetDetectsThreeByteStartCode(t *testing.T) {
	data := []byte{0x00, 0x00, 0x01, 0x67, 0x42, 0x00}
	if !containsParameterSet(data) {
		t.Fatal("expected SPS to be detected with 3-byte start code")
	}
}

func TestContainsParameterSetRejectsNonSPS(t *testing.T) {
	// NAL type 1 (non-IDR slice), not a parameter set.
	data := []byte{0x00, 0x00, 0x00, 0x01, 0x61, 0x88, 0x00}
	if containsParameterSet(data) {
		t.Fatal("did not expect a non-SPS NAL to be detected as a parameter set")
	}
}

func TestContainsParameterSetHandlesEmptyAndShortInput(t *testing.T) {
	if containsParameterSet(nil) {
		t.Fatal("empty input must not match")
	}
	if containsParameterSet([]byte{0x00, 0x00, 0x01}) {
		t.Fatal("start code with no following NAL header must not match")
	}
}
