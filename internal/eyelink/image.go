package eyelink

// imageBuffer is the worker's RGBA working buffer for camera frames
type imageBuffer struct {
	pix           []byte
	width, height int
}

// resize makes room for a width x height frame, reallocating only when
// the frame is larger than the current capacity.
func (b *imageBuffer) resize(width, height int) {
	size := width * height * 4
	if cap(b.pix) < size {
		b.pix = make([]byte, size)
	}
	b.pix = b.pix[:size]
	b.width, b.height = width, height
}

// convertBGRA writes src (BGRA) into dst as opaque RGBA
func convertBGRA(dst, src []byte) {
	n := min(len(dst), len(src))
	for i := 0; i+3 < n; i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = 0xff
	}
}
