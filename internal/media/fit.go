package media

// FitSize returns the dimensions of an image of size (w, h) scaled down to fit inside
// the box (boxW, boxH). It never upscales and keeps the aspect ratio on the binding side.
// Results are truncated and clamped to at least one pixel.
func FitSize(boxW, boxH, w, h int) (int, int) {
	wf := min(1, float64(boxW)/float64(w))
	hf := min(1, float64(boxH)/float64(h))

	var outW, outH int
	switch {
	case wf == hf:
		outW, outH = int(float64(w)*hf), int(float64(h)*wf)
	case wf < hf:
		outW, outH = boxW, int(float64(h)*wf)
	default:
		outW, outH = int(float64(w)*hf), boxH
	}
	return max(outW, 1), max(outH, 1)
}
