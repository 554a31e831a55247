package main

// ActionDefinition defines an action with its default keybindings, mouse bindings, and description
type ActionDefinition struct {
	Name         string
	Keys         []string
	MouseActions []string
	Description  string
}

// actionDefinitions contains all action definitions with default keybindings, mouse bindings, and descriptions
var actionDefinitions = []ActionDefinition{
	{"exit", []string{"Escape", "KeyQ"}, []string{}, "Quit application"},
	{"help", []string{"Shift+Slash"}, []string{"Alt+RightClick"}, "Show/hide help"},
	{"info", []string{"KeyI"}, []string{}, "Show/hide archive info"},
	{"next", []string{"Space", "KeyN", "ArrowRight"}, []string{"LeftClick", "WheelDown"}, "Next page (or 2 pages in book mode)"},
	{"previous", []string{"Backspace", "KeyP", "ArrowLeft"}, []string{"RightClick", "WheelUp"}, "Previous page (or 2 pages in book mode)"},
	{"next_single", []string{"Shift+Space", "Shift+KeyN"}, []string{"Shift+LeftClick", "Shift+WheelDown"}, "Single page forward (fine adjustment)"},
	{"previous_single", []string{"Shift+Backspace", "Shift+KeyP"}, []string{"Shift+RightClick", "Shift+WheelUp"}, "Single page backward (fine adjustment)"},
	{"toggle_book_mode", []string{"KeyB"}, []string{"MiddleClick"}, "Toggle book mode (dual page view)"},
	{"toggle_reading_direction", []string{"Shift+KeyB"}, []string{"Ctrl+MiddleClick"}, "Toggle reading direction (LTR ↔ RTL)"},
	{"fullscreen", []string{"Enter"}, []string{"DoubleLeftClick"}, "Toggle fullscreen"},
	{"jump_first", []string{"Home", "Shift+Comma"}, []string{}, "Jump to first page"},
	{"jump_last", []string{"End", "Shift+Period"}, []string{}, "Jump to last page"},
	{"toggle_thumbnails", []string{"KeyT"}, []string{}, "Show/hide thumbnail rail"},
	{"reload_archive", []string{"KeyR"}, []string{}, "Reload archive from disk"},
}

// ActionExecutor maps action names onto InputActions calls for both the
// keyboard and the mouse binding managers.
type ActionExecutor struct{}

// NewActionExecutor creates a new ActionExecutor instance
func NewActionExecutor() *ActionExecutor {
	return &ActionExecutor{}
}

// ExecuteAction executes the given action using the InputActions interface
func (ae *ActionExecutor) ExecuteAction(action string, inputActions InputActions) bool {
	switch action {
	case "exit":
		inputActions.Exit()
	case "help":
		inputActions.ToggleHelp()
	case "info":
		inputActions.ToggleInfo()
	case "next":
		inputActions.NavigateNext()
	case "previous":
		inputActions.NavigatePrevious()
	case "next_single":
		inputActions.NavigateBy(1)
	case "previous_single":
		inputActions.NavigateBy(-1)
	case "toggle_book_mode":
		inputActions.ToggleBookMode()
	case "toggle_reading_direction":
		inputActions.ToggleReadingDirection()
	case "fullscreen":
		inputActions.ToggleFullscreen()
	case "jump_first":
		inputActions.JumpToPage(1)
	case "jump_last":
		totalPages := inputActions.GetTotalPagesCount()
		if totalPages > 0 {
			inputActions.JumpToPage(totalPages)
		}
	case "toggle_thumbnails":
		inputActions.ToggleThumbnails()
	case "reload_archive":
		inputActions.ReloadArchive()
	default:
		return false
	}

	return true
}

// globalActionExecutor is the global instance of ActionExecutor used throughout the application
var globalActionExecutor = NewActionExecutor()

// GetActionDescriptions returns a map of action names to their descriptions
func GetActionDescriptions() map[string]string {
	descriptions := make(map[string]string)
	for _, action := range actionDefinitions {
		descriptions[action.Name] = action.Description
	}
	return descriptions
}

// GetDefaultKeybindings returns a map of action names to their default keybindings
func GetDefaultKeybindings() map[string][]string {
	keybindings := make(map[string][]string)
	for _, action := range actionDefinitions {
		keybindings[action.Name] = append([]string(nil), action.Keys...)
	}
	return keybindings
}

// GetDefaultMousebindings returns a map of action names to their default mouse bindings
func GetDefaultMousebindings() map[string][]string {
	mousebindings := make(map[string][]string)
	for _, action := range actionDefinitions {
		mousebindings[action.Name] = append([]string(nil), action.MouseActions...)
	}
	return mousebindings
}
