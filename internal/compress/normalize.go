package compress

// Normalize clamps width and height so that neither exceeds maxEdge while
// keeping the aspect ratio. The longer edge becomes exactly maxEdge and the
// other is rounded down, never below 1. Dimensions already within maxEdge
// are returned unchanged.
func Normalize(width, height, maxEdge int) (int, int) {
	if maxEdge <= 0 || width <= 0 || height <= 0 {
		return width, height
	}
	if width <= maxEdge && height <= maxEdge {
		return width, height
	}

	if width >= height {
		h := int(int64(height) * int64(maxEdge) / int64(width))
		return maxEdge, max(h, 1)
	}
	w := int(int64(width) * int64(maxEdge) / int64(height))
	return max(w, 1), maxEdge
}

// scaleDims applies a downscale factor to normalized dimensions.
func scaleDims(width, height int, scale float64) (int, int) {
	w := int(float64(width) * scale)
	h := int(float64(height) * scale)
	return max(w, 1), max(h, 1)
}
