package resampler

// Assembler regroups a stream of variable-length sample slices into
// fixed-size frames. The capture pipeline uses it so every chunk handed to
// the encoder is exactly one codec frame, regardless of resampler latency.
type Assembler struct {
	frameSize int
	pending   []int16
}

// NewAssembler creates an Assembler emitting frames of frameSize samples.
func NewAssembler(frameSize int) *Assembler {
	return &Assembler{frameSize: frameSize}
}

// Push appends samples and returns all complete frames now available.
// Returned frames are freshly allocated and safe to retain.
func (a *Assembler) Push(samples []int16) [][]int16 {
	a.pending = append(a.pending, samples...)

	var frames [][]int16
	for len(a.pending) >= a.frameSize {
		frame := make([]int16, a.frameSize)
		copy(frame, a.pending[:a.frameSize])
		a.pending = a.pending[a.frameSize:]
		frames = append(frames, frame)
	}
	return frames
}

// Pending returns the number of buffered samples not yet forming a frame.
func (a *Assembler) Pending() int { return len(a.pending) }

// Reset discards buffered samples.
func (a *Assembler) Reset() { a.pending = a.pending[:0] }
