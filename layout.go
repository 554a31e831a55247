package main

import (
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Viewport is the drawable area handed to the layout engine, in pixels
type Viewport struct {
	Width  int
	Height int
}

// LayoutMode selects single or paired display and the reading direction.
// The two fields are independent.
type LayoutMode struct {
	Paired      bool
	RightToLeft bool
}

// Spread holds the decoded pages for the left and right slots. In single
// mode only Left is used.
type Spread struct {
	Left  *DecodedPage
	Right *DecodedPage
}

// SpreadSlots maps the cursor to the page indices shown in the left and
// right slots; -1 marks an absent slot.
//
// Left-to-right: the cursor is the left page, the right page is cursor+1 and
// absent on the last page. Right-to-left: the cursor is the right page, the
// left page is cursor-1 and absent on the first page.
func SpreadSlots(cursor, count int, mode LayoutMode) (left, right int) {
	if count <= 0 || cursor < 0 || cursor >= count {
		return -1, -1
	}
	if !mode.Paired {
		return cursor, -1
	}

	last := count - 1
	if mode.RightToLeft {
		left = -1
		if cursor > 0 {
			left = cursor - 1
		}
		return left, cursor
	}

	right = -1
	if cursor < last {
		right = cursor + 1
	}
	return cursor, right
}

// SpreadPlan is the geometry of a composed raster
type SpreadPlan struct {
	Scale  float64
	Canvas image.Rectangle
	Left   image.Rectangle // empty when the slot is absent
	Right  image.Rectangle
}

// fitScale returns the largest scale that fits w×h into the viewport
// without enlarging past native size.
func fitScale(w, h int, vp Viewport) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	vw := float64(max(1, vp.Width))
	vh := float64(max(1, vp.Height))
	return math.Min(math.Min(vw/float64(w), vh/float64(h)), 1.0)
}

func scaledLength(n int, scale float64) int {
	return max(1, int(math.Round(float64(n)*scale)))
}

// PlanSpread computes one scale shared by both pages so the spread reads
// as a single sheet: scale = min(vw/Σw, vh/max h, 1). A nil page contributes
// no width.
func PlanSpread(left, right *DecodedPage, vp Viewport) SpreadPlan {
	totalW, maxH := 0, 0
	for _, p := range []*DecodedPage{left, right} {
		if p == nil {
			continue
		}
		totalW += p.Width
		maxH = max(maxH, p.Height)
	}
	if totalW == 0 || maxH == 0 {
		return SpreadPlan{}
	}

	scale := fitScale(totalW, maxH, vp)
	canvasH := scaledLength(maxH, scale)

	var plan SpreadPlan
	plan.Scale = scale
	x := 0
	if left != nil {
		w, h := scaledLength(left.Width, scale), scaledLength(left.Height, scale)
		y := (canvasH - h) / 2
		plan.Left = image.Rect(x, y, x+w, y+h)
		x += w
	}
	if right != nil {
		w, h := scaledLength(right.Width, scale), scaledLength(right.Height, scale)
		y := (canvasH - h) / 2
		plan.Right = image.Rect(x, y, x+w, y+h)
		x += w
	}
	plan.Canvas = image.Rect(0, 0, x, canvasH)
	return plan
}

// LayoutEngine scales and composes decoded pages into a display raster
type LayoutEngine struct {
	scaler draw.Interpolator
}

// NewLayoutEngine creates an engine using the named resampling filter
func NewLayoutEngine(filter string) *LayoutEngine {
	return &LayoutEngine{scaler: interpolatorFor(filter)}
}

func interpolatorFor(name string) draw.Interpolator {
	switch strings.ToLower(name) {
	case "nearest":
		return draw.NearestNeighbor
	case "approxbilinear":
		return draw.ApproxBiLinear
	case "bilinear":
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// Compose renders the spread for mode into a new raster. Single mode shows
// one page scaled to fit; paired mode places left at x=0 and right directly
// after it. With no page present the result is an empty raster.
func (e *LayoutEngine) Compose(s Spread, vp Viewport, mode LayoutMode) *image.RGBA {
	left, right := s.Left, s.Right
	if !mode.Paired {
		if left == nil {
			left = right
		}
		right = nil
	}

	plan := PlanSpread(left, right, vp)
	dst := image.NewRGBA(plan.Canvas)
	if plan.Canvas.Empty() {
		return dst
	}
	if left != nil {
		e.paste(dst, plan.Left, left, plan.Scale)
	}
	if right != nil {
		e.paste(dst, plan.Right, right, plan.Scale)
	}
	return dst
}

func (e *LayoutEngine) paste(dst *image.RGBA, r image.Rectangle, page *DecodedPage, scale float64) {
	src := page.Image
	if scale == 1.0 && r.Dx() == page.Width && r.Dy() == page.Height {
		draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
		return
	}
	e.scaler.Scale(dst, r, src, src.Bounds(), draw.Src, nil)
}

// ScaleToHeight resizes img to height h keeping its aspect ratio:
// width = round(w*h/nativeH).
func ScaleToHeight(img image.Image, h int, scaler draw.Scaler) *image.RGBA {
	b := img.Bounds()
	if b.Dy() <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	w := max(1, int(math.Round(float64(b.Dx())*float64(h)/float64(b.Dy()))))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
