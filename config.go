package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Window size constants
const (
	defaultWidth  = 1000
	defaultHeight = 700
	minWidth      = 400
	minHeight     = 300
)

// Rail and layout defaults
const (
	defaultNavWidth    = 180
	minThumbnailHeight = 32
	maxThumbnailHeight = 512
	maxSaveDelayMs     = 5000
	defaultPreload     = 4
	defaultFontSize    = 20.0
)

var validScaleFilters = map[string]bool{
	"catmullrom":     true,
	"bilinear":       true,
	"approxbilinear": true,
	"nearest":        true,
}

// ConfigLoadResult contains the result of loading configuration
type ConfigLoadResult struct {
	Config   Config
	HasError bool
	Warnings []string
	Status   string // "OK", "Default", "Warning", "Error"
}

type Config struct {
	WindowWidth     int                 `json:"window_width" yaml:"window_width"`
	WindowHeight    int                 `json:"window_height" yaml:"window_height"`
	BookMode        bool                `json:"book_mode" yaml:"book_mode"`
	RightToLeft     bool                `json:"right_to_left" yaml:"right_to_left"`
	SortMethod      int                 `json:"sort_method" yaml:"sort_method"`
	ThumbnailHeight int                 `json:"thumbnail_height" yaml:"thumbnail_height"`
	NavWidth        int                 `json:"nav_width" yaml:"nav_width"`
	ShowThumbnails  bool                `json:"show_thumbnails" yaml:"show_thumbnails"`
	SaveDelayMs     int                 `json:"save_delay_ms" yaml:"save_delay_ms"`
	AutosaveOnJump  bool                `json:"autosave_on_jump" yaml:"autosave_on_jump"`
	PreloadEnabled  bool                `json:"preload_enabled" yaml:"preload_enabled"`
	PreloadCount    int                 `json:"preload_count" yaml:"preload_count"`
	RasterCacheSize int                 `json:"raster_cache_size" yaml:"raster_cache_size"`
	ScaleFilter     string              `json:"scale_filter" yaml:"scale_filter"`
	ExcludePatterns []string            `json:"exclude_patterns" yaml:"exclude_patterns"`
	WatchArchive    bool                `json:"watch_archive" yaml:"watch_archive"`
	FontSize        float64             `json:"font_size" yaml:"font_size"`
	Debug           bool                `json:"debug" yaml:"debug"`
	Keybindings     map[string][]string `json:"keybindings" yaml:"keybindings"`
	Mousebindings   map[string][]string `json:"mousebindings" yaml:"mousebindings"`
	MouseSettings   MouseSettings       `json:"mouse_settings" yaml:"mouse_settings"`
}

// SaveDelay returns the debounce window for progress writes
func (c Config) SaveDelay() time.Duration {
	return time.Duration(c.SaveDelayMs) * time.Millisecond
}

// LayoutMode returns the initial layout mode
func (c Config) LayoutMode() LayoutMode {
	return LayoutMode{Paired: c.BookMode, RightToLeft: c.RightToLeft}
}

func defaultConfig() Config {
	return Config{
		WindowWidth:     defaultWidth,
		WindowHeight:    defaultHeight,
		BookMode:        false,
		RightToLeft:     false,
		SortMethod:      SortSimple,
		ThumbnailHeight: defaultThumbnailHeight,
		NavWidth:        defaultNavWidth,
		ShowThumbnails:  true,
		SaveDelayMs:     int(defaultSaveDelay / time.Millisecond),
		AutosaveOnJump:  false,
		PreloadEnabled:  true,
		PreloadCount:    defaultPreload,
		RasterCacheSize: defaultRasterCacheSize,
		ScaleFilter:     "catmullrom",
		ExcludePatterns: []string{},
		WatchArchive:    true,
		FontSize:        defaultFontSize,
		Debug:           false,
		Keybindings:     GetDefaultKeybindings(),
		Mousebindings:   GetDefaultMousebindings(),
		MouseSettings:   GetDefaultMouseSettings(),
	}
}

// getConfigPath prefers ~/.pv.yaml when it exists, otherwise ~/.pv.json
func getConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "pv.json"
	}
	for _, name := range []string{".pv.yaml", ".pv.yml"} {
		p := filepath.Join(homeDir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(homeDir, ".pv.json")
}

func isYAMLPath(configPath string) bool {
	ext := strings.ToLower(filepath.Ext(configPath))
	return ext == ".yaml" || ext == ".yml"
}

func loadConfig() ConfigLoadResult {
	return loadConfigFromPath(getConfigPath())
}

func loadConfigFromPath(configPath string) ConfigLoadResult {
	config := defaultConfig()

	result := ConfigLoadResult{
		Config:   config,
		HasError: false,
		Warnings: []string{},
		Status:   "OK",
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		// Config file not found is not an error - use defaults
		result.Status = "Default"
		return result
	}

	if isYAMLPath(configPath) {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		logger.WithField("path", configPath).Warnf("Invalid config file, using defaults: %v", err)
		result.HasError = true
		result.Status = "Error"
		result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid config file: %v", err))
		return result
	}

	warn := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		logger.WithField("path", configPath).Warn(msg)
		result.Warnings = append(result.Warnings, msg)
		result.Status = "Warning"
	}

	// Validate minimum size
	if config.WindowWidth < minWidth {
		config.WindowWidth = defaultWidth
	}
	if config.WindowHeight < minHeight {
		config.WindowHeight = defaultHeight
	}

	// Validate sort method
	if !isKnownSortMethod(config.SortMethod) {
		config.SortMethod = SortSimple
	}

	// Validate thumbnail height
	if config.ThumbnailHeight <= 0 {
		config.ThumbnailHeight = defaultThumbnailHeight
	} else if config.ThumbnailHeight < minThumbnailHeight {
		config.ThumbnailHeight = minThumbnailHeight
	} else if config.ThumbnailHeight > maxThumbnailHeight {
		config.ThumbnailHeight = maxThumbnailHeight
	}

	// Validate rail width (0 hides the rail entirely)
	if config.NavWidth < 0 || config.NavWidth > config.WindowWidth/2 {
		config.NavWidth = defaultNavWidth
	}

	// Validate save delay (maximum 5 seconds)
	if config.SaveDelayMs <= 0 {
		config.SaveDelayMs = int(defaultSaveDelay / time.Millisecond)
	} else if config.SaveDelayMs > maxSaveDelayMs {
		config.SaveDelayMs = maxSaveDelayMs
	}

	// Validate preload count (minimum 1, maximum 16)
	if config.PreloadCount < 1 {
		config.PreloadCount = defaultPreload
	} else if config.PreloadCount > 16 {
		config.PreloadCount = 16
	}

	// Validate raster cache size (minimum 1, maximum 64)
	if config.RasterCacheSize < 1 {
		config.RasterCacheSize = defaultRasterCacheSize
	} else if config.RasterCacheSize > 64 {
		config.RasterCacheSize = 64
	}

	// Validate scale filter
	config.ScaleFilter = strings.ToLower(config.ScaleFilter)
	if !validScaleFilters[config.ScaleFilter] {
		if config.ScaleFilter != "" {
			warn("Unknown scale filter %q, using catmullrom", config.ScaleFilter)
		}
		config.ScaleFilter = "catmullrom"
	}

	// Validate font size (minimum 12px for readability)
	if config.FontSize < 12.0 {
		config.FontSize = defaultFontSize
	}

	// Drop exclude patterns that do not compile
	valid := config.ExcludePatterns[:0]
	for _, p := range config.ExcludePatterns {
		if _, err := compileExcludePatterns([]string{p}); err != nil {
			warn("Ignoring %v", err)
			continue
		}
		valid = append(valid, p)
	}
	config.ExcludePatterns = valid

	// Validate keybindings - ensure defaults exist for missing actions
	if config.Keybindings == nil {
		config.Keybindings = GetDefaultKeybindings()
	} else {
		defaults := GetDefaultKeybindings()
		for action, defaultKeys := range defaults {
			if _, exists := config.Keybindings[action]; !exists {
				config.Keybindings[action] = defaultKeys
			}
		}

		if err := validateKeybindings(config.Keybindings); err != nil {
			warn("Keybinding errors: %v", err)
			config.Keybindings = GetDefaultKeybindings()
		}
	}

	// Validate mousebindings the same way
	if config.Mousebindings == nil {
		config.Mousebindings = GetDefaultMousebindings()
	} else {
		for action, defaultMouse := range GetDefaultMousebindings() {
			if _, exists := config.Mousebindings[action]; !exists {
				config.Mousebindings[action] = defaultMouse
			}
		}
		if err := validateMousebindings(config.Mousebindings); err != nil {
			warn("Mousebinding errors: %v", err)
			config.Mousebindings = GetDefaultMousebindings()
		}
	}

	// Validate mouse settings
	if config.MouseSettings.WheelSensitivity <= 0 || config.MouseSettings.WheelSensitivity > 5.0 {
		config.MouseSettings.WheelSensitivity = 1.0
	}
	if config.MouseSettings.DoubleClickTime < 100 || config.MouseSettings.DoubleClickTime > 1000 {
		config.MouseSettings.DoubleClickTime = 300
	}
	if config.MouseSettings.RailScrollStep <= 0 {
		config.MouseSettings.RailScrollStep = GetDefaultMouseSettings().RailScrollStep
	}

	result.Config = config
	return result
}

// validateMousebindings checks that every mouse string parses and is bound
// to one action only
func validateMousebindings(mousebindings map[string][]string) error {
	knownActions := GetActionDescriptions()
	mouseMapping := getMouseMapping()
	comboToAction := make(map[MouseCombination]string)
	for action, mouseStrs := range mousebindings {
		if _, ok := knownActions[action]; !ok {
			return fmt.Errorf("unknown action '%s'", action)
		}
		for _, mouseStr := range mouseStrs {
			combo, ok := parseMouseString(mouseMapping, mouseStr)
			if !ok {
				return fmt.Errorf("invalid mouse action '%s' for action '%s'", mouseStr, action)
			}
			if existing, exists := comboToAction[*combo]; exists {
				return fmt.Errorf("mouse conflict: '%s' is bound to both '%s' and '%s'", mouseStr, existing, action)
			}
			comboToAction[*combo] = action
		}
	}
	return nil
}

// validateKeybindings validates the keybindings configuration
func validateKeybindings(keybindings map[string][]string) error {
	keyToAction := make(map[string]string)
	validKeys := getValidKeyNames()
	knownActions := GetActionDescriptions()

	for action, keys := range keybindings {
		if _, ok := knownActions[action]; !ok {
			return fmt.Errorf("unknown action '%s'", action)
		}
		for _, keyStr := range keys {
			if err := validateKeyString(keyStr, validKeys); err != nil {
				return fmt.Errorf("invalid key '%s' for action '%s': %v", keyStr, action, err)
			}

			if existingAction, exists := keyToAction[keyStr]; exists {
				return fmt.Errorf("key conflict: '%s' is bound to both '%s' and '%s'", keyStr, existingAction, action)
			}
			keyToAction[keyStr] = action
		}
	}

	return nil
}

// validateKeyString validates a single key string format
func validateKeyString(keyStr string, validKeys map[string]bool) error {
	if keyStr == "" {
		return fmt.Errorf("empty key string")
	}
	parts := strings.Split(keyStr, "+")

	// Last part should be the actual key
	keyName := parts[len(parts)-1]
	if !validKeys[keyName] {
		return fmt.Errorf("unknown key: %s", keyName)
	}

	for i := 0; i < len(parts)-1; i++ {
		modifier := strings.ToLower(parts[i])
		if modifier != "shift" && modifier != "ctrl" && modifier != "alt" {
			return fmt.Errorf("unknown modifier: %s", parts[i])
		}
	}

	return nil
}

// getValidKeyNames returns the set of key names a binding may use
func getValidKeyNames() map[string]bool {
	names := make(map[string]bool)
	for name := range getKeyMapping() {
		names[name] = true
	}
	return names
}

func saveConfig(config Config) {
	saveConfigToPath(config, getConfigPath())
}

func saveConfigToPath(config Config, configPath string) {
	// Don't save if size is too small
	if config.WindowWidth < minWidth || config.WindowHeight < minHeight {
		logger.Warnf("Not saving config with invalid window size: %dx%d",
			config.WindowWidth, config.WindowHeight)
		return
	}

	var data []byte
	var err error
	if isYAMLPath(configPath) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		logger.Errorf("Failed to marshal config: %v", err)
		return
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		logger.WithField("path", configPath).Errorf("Failed to save config: %v", err)
	}
}
