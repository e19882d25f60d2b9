package pipeline

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kozaktomas/face-gate/internal/detect"
)

const boxThickness = 2

var (
	colorGranted = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorDenied  = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	colorError   = color.RGBA{R: 230, G: 200, B: 0, A: 255}
)

// Annotate returns a copy of the frame with one colored box per face:
// green when access was granted, red when denied, yellow when the face
// could not be processed. Decided faces carry the identity label.
func Annotate(frame image.Image, faces []FaceResult) image.Image {
	bounds := frame.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, frame, bounds.Min, draw.Src)

	for _, face := range faces {
		c := faceColor(face)
		drawBox(dst, face.Region.Rect(), c)
		if label := faceLabel(face); label != "" {
			drawLabel(dst, label, face.Region, c)
		}
	}
	return dst
}

func faceColor(face FaceResult) color.RGBA {
	switch {
	case face.FaceError:
		return colorError
	case face.Outcome.Granted():
		return colorGranted
	default:
		return colorDenied
	}
}

func faceLabel(face FaceResult) string {
	if face.FaceError {
		return ""
	}
	return face.Outcome.IdentityID
}

func drawBox(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for t := 0; t < boxThickness; t++ {
		for x := rect.Min.X - t; x <= rect.Max.X+t; x++ {
			dst.Set(x, rect.Min.Y-t, c)
			dst.Set(x, rect.Max.Y+t, c)
		}
		for y := rect.Min.Y - t; y <= rect.Max.Y+t; y++ {
			dst.Set(rect.Min.X-t, y, c)
			dst.Set(rect.Max.X+t, y, c)
		}
	}
}

func drawLabel(dst *image.RGBA, label string, region detect.Region, c color.RGBA) {
	// Above the box when there is room, inside the top edge otherwise.
	y := region.Y - 4
	if y < basicfont.Face7x13.Height {
		y = region.Y + basicfont.Face7x13.Height + 2
	}
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(region.X, y),
	}
	drawer.DrawString(label)
}
