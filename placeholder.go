package main

import (
	"image"
	"image/color"
	"path"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 400
	placeholderHeight = 300
	placeholderBorder = 3
)

var (
	placeholderBackground = color.RGBA{120, 30, 30, 255}
	placeholderForeground = color.RGBA{255, 255, 255, 255}
)

// CreateErrorImage renders a placeholder bitmap naming the page that failed
// and why. It stands in for the page in layouts and thumbnails.
func CreateErrorImage(width, height int, filename, errorMsg string) *image.RGBA {
	if width <= 0 || height <= 0 {
		width, height = placeholderWidth, placeholderHeight
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBackground), image.Point{}, draw.Src)

	fg := image.NewUniform(placeholderForeground)
	b := placeholderBorder
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, width, b),
		image.Rect(0, height-b, width, height),
		image.Rect(0, 0, b, height),
		image.Rect(width-b, 0, width, height),
	} {
		draw.Draw(img, r, fg, image.Point{}, draw.Src)
	}

	face := basicfont.Face7x13
	maxChars := (width - 20) / face.Advance
	lines := []string{
		"ERROR",
		truncateText("File: "+path.Base(filename), maxChars),
		truncateText("Reason: "+errorMsg, maxChars),
	}

	d := &font.Drawer{Dst: img, Src: fg, Face: face}
	y := 10 + face.Ascent
	for _, line := range lines {
		if y > height-b {
			break
		}
		d.Dot = fixed.P(10, y)
		d.DrawString(line)
		y += face.Height + 8
	}
	return img
}

func truncateText(s string, maxChars int) string {
	if maxChars <= 3 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars-3]) + "..."
}

// placeholderPage wraps CreateErrorImage as a DecodedPage
func placeholderPage(name string, err error) *DecodedPage {
	img := CreateErrorImage(placeholderWidth, placeholderHeight, name, err.Error())
	return &DecodedPage{Image: img, Width: placeholderWidth, Height: placeholderHeight}
}
