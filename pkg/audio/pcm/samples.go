package pcm

// Bytes converts int16 samples to little-endian bytes.
func Bytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// Samples converts little-endian bytes to int16 samples. A trailing odd
// byte is ignored.
func Samples(b []byte) []int16 {
	s := make([]int16, len(b)/2)
	for i := range s {
		s[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return s
}

// StereoToMono folds interleaved stereo samples to mono by averaging the
// left and right channels.
func StereoToMono(stereo []int16) []int16 {
	mono := make([]int16, len(stereo)/2)
	for i := range mono {
		l := int32(stereo[i*2])
		r := int32(stereo[i*2+1])
		mono[i] = int16((l + r) / 2)
	}
	return mono
}

// MonoToStereo duplicates mono samples into interleaved stereo.
func MonoToStereo(mono []int16) []int16 {
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}
	return stereo
}

// Deinterleave splits interleaved stereo samples into separate left and
// right channel slices. On devices with acoustic echo cancellation the
// right channel carries the playback reference signal.
func Deinterleave(stereo []int16) (left, right []int16) {
	n := len(stereo) / 2
	left = make([]int16, n)
	right = make([]int16, n)
	for i := 0; i < n; i++ {
		left[i] = stereo[i*2]
		right[i] = stereo[i*2+1]
	}
	return left, right
}
