package frame

// PatternCell is the checkerboard cell size of the fallback pattern, in pixels.
const PatternCell = 50

// FallbackPattern renders the deterministic test image shown when no real
// source is available: a checkerboard of white cells alternating with a red
// base carrying a horizontal green and a vertical blue gradient.
func FallbackPattern(width, height uint32) *Frame {
	f := New(width, height)
	if f.Empty() {
		return f
	}

	w, h := int(width), int(height)
	for y := 0; y < h; y++ {
		row := y * w * BytesPerPixel
		for x := 0; x < w; x++ {
			i := row + x*BytesPerPixel
			if (x/PatternCell+y/PatternCell)%2 == 0 {
				f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 0xFF, 0xFF, 0xFF
			} else {
				f.Pix[i] = 0xFF
				f.Pix[i+1] = byte(x * 255 / w)
				f.Pix[i+2] = byte(y * 255 / h)
			}
			f.Pix[i+3] = 0xFF
		}
	}
	return f
}

// MovingPattern is the synthetic source image: the fallback checkerboard
// shifted by offset pixels, so consecutive frames differ.
func MovingPattern(width, height uint32, offset int) *Frame {
	f := New(width, height)
	if f.Empty() {
		return f
	}

	w, h := int(width), int(height)
	for y := 0; y < h; y++ {
		row := y * w * BytesPerPixel
		for x := 0; x < w; x++ {
			i := row + x*BytesPerPixel
			sx := x + offset
			if (sx/PatternCell+y/PatternCell)%2 == 0 {
				f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 0x20, 0x20, 0x20
			} else {
				f.Pix[i] = byte(sx * 255 / w)
				f.Pix[i+1] = byte(y * 255 / h)
				f.Pix[i+2] = 0xC0
			}
			f.Pix[i+3] = 0xFF
		}
	}
	return f
}
