package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// InputHandler handles all keyboard and mouse input processing
type InputHandler struct {
	inputActions        InputActions
	inputState          InputState
	keybindingManager   *KeybindingManager
	mousebindingManager *MousebindingManager
}

// NewInputHandler creates a new InputHandler
func NewInputHandler(inputActions InputActions, inputState InputState, keybindingManager *KeybindingManager, mousebindingManager *MousebindingManager) *InputHandler {
	return &InputHandler{
		inputActions:        inputActions,
		inputState:          inputState,
		keybindingManager:   keybindingManager,
		mousebindingManager: mousebindingManager,
	}
}

// alwaysAvailable lists actions that work with no archive loaded
var alwaysAvailable = map[string]bool{
	"exit":       true,
	"help":       true,
	"info":       true,
	"fullscreen": true,
}

// HandleInput processes all input for the current frame
// Returns true if any input was processed, false otherwise
func (h *InputHandler) HandleInput() bool {
	loaded := h.inputActions.GetTotalPagesCount() > 0
	inputProcessed := false

	overRail := false
	if h.mousebindingManager.GetSettings().EnableMouse {
		x, y := ebiten.CursorPosition()
		overRail = loaded && h.inputState.InRail(x, y)
		if overRail {
			inputProcessed = h.handleRailMouse(x, y) || inputProcessed
		}
	}

	for _, def := range actionDefinitions {
		if !loaded && !alwaysAvailable[def.Name] {
			continue
		}
		if h.keybindingManager.ExecuteAction(def.Name, h.inputActions) {
			inputProcessed = true
			continue
		}
		// clicks and wheel over the rail belong to the rail
		if !overRail && h.mousebindingManager.ExecuteAction(def.Name, h.inputActions) {
			inputProcessed = true
		}
	}

	return inputProcessed
}

// handleRailMouse jumps to a clicked thumbnail and scrolls the rail with
// the wheel.
func (h *InputHandler) handleRailMouse(x, y int) bool {
	processed := false
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if idx, ok := h.inputState.ThumbnailAt(x, y); ok {
			h.inputActions.JumpToPage(idx + 1)
			processed = true
		}
	}
	if notches := h.mousebindingManager.wheelNotches(); notches != 0 {
		step := h.mousebindingManager.GetSettings().RailScrollStep
		h.inputState.ScrollRail(-int(notches * float64(step)))
		processed = true
	}
	return processed
}
