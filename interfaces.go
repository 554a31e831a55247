package main

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	// Overlay message display duration
	overlayMessageDuration = 2 * time.Second
	// Load errors and the progress warning stay up longer
	overlayErrorDuration = 5 * time.Second
)

// RenderState provides read-only access to viewer state for the renderer
type RenderState interface {
	// Page content
	GetPageImage() *ebiten.Image
	GetThumbnailImage(i int) *ebiten.Image
	GetThumbnails() *ThumbnailSet
	GetCurrentIndex() int
	GetTotalPagesCount() int
	GetVisiblePages() []int
	GetSummary() (Summary, bool)
	GetLayoutMode() LayoutMode

	// Rail
	IsShowingThumbnails() bool
	GetRailWidth() int
	GetRailOffset() int

	// UI state
	IsShowingHelp() bool
	IsShowingInfo() bool
	GetOverlayMessage() string
	GetOverlayMessageTime() time.Time
	GetOverlayDuration() time.Duration

	// Display data
	GetFontSize() float64
	GetConfigStatus() ConfigLoadResult
	GetKeybindings() map[string][]string
	GetMousebindings() map[string][]string
}

// InputActions provides action methods for the input handler
type InputActions interface {
	// Application control
	Exit()

	// Display toggles
	ToggleHelp()
	ToggleInfo()
	ToggleBookMode()
	ToggleReadingDirection()
	ToggleFullscreen()
	ToggleThumbnails()

	// Navigation
	NavigateNext()
	NavigatePrevious()
	NavigateBy(delta int)
	JumpToPage(page int) // 1-based
	ReloadArchive()

	// Messages
	ShowOverlayMessage(message string)

	// Common data access
	GetCurrentIndex() int
	GetTotalPagesCount() int
}

// InputState provides read-only access to input-related state
type InputState interface {
	// ThumbnailAt returns the page whose rail thumbnail contains (x, y)
	ThumbnailAt(x, y int) (int, bool)
	InRail(x, y int) bool
	ScrollRail(delta int)
}
