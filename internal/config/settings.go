package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Settings holds all user-configurable preferences
type Settings struct {
	Theme            string `json:"theme"`
	NotifyOnComplete bool   `json:"notifyOnComplete"`
	NotifyOnFail     bool   `json:"notifyOnFail"`
	DefaultSort      string `json:"defaultSort"`
	ItemsPerPage     int    `json:"itemsPerPage"`
	AutoOpenTypes    string `json:"autoOpenTypes"` // comma separated, lowercase, no leading dot
}

const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Setting keys
const (
	KeyTheme            = "theme"
	KeyNotifyOnComplete = "notifyOnComplete"
	KeyNotifyOnFail     = "notifyOnFail"
	KeyDefaultSort      = "defaultSort"
	KeyItemsPerPage     = "itemsPerPage"
	KeyAutoOpenTypes    = "autoOpenTypes"
)

// SortOrders lists the accepted sort keys in display order
var SortOrders = []string{
	"startTimeDesc",
	"startTimeAsc",
	"filenameAsc",
	"filenameDesc",
	"totalBytesDesc",
	"totalBytesAsc",
}

// PageSizes lists the accepted items-per-page values
var PageSizes = []int{10, 25, 50, 100}

// SettingMeta provides metadata for a single setting (for UI rendering).
type SettingMeta struct {
	Key         string // JSON key name
	Label       string // Human-readable label
	Description string // Help text
	Type        string // "string", "int", "bool"
}

// GetSettingsMetadata returns metadata for all settings in display order.
func GetSettingsMetadata() []SettingMeta {
	return []SettingMeta{
		{Key: KeyTheme, Label: "Theme", Description: "Popup theme (system, light, dark).", Type: "string"},
		{Key: KeyNotifyOnComplete, Label: "Notify on Complete", Description: "Show a notification when a download finishes.", Type: "bool"},
		{Key: KeyNotifyOnFail, Label: "Notify on Failure", Description: "Show a notification when a download fails.", Type: "bool"},
		{Key: KeyDefaultSort, Label: "Default Sort", Description: "Sort order used when the popup opens.", Type: "string"},
		{Key: KeyItemsPerPage, Label: "Items per Page", Description: "Number of downloads per page (10, 25, 50, 100).", Type: "int"},
		{Key: KeyAutoOpenTypes, Label: "Auto-open Types", Description: "Comma separated extensions opened when their download completes (e.g. pdf,txt).", Type: "string"},
	}
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Theme:            ThemeSystem,
		NotifyOnComplete: true,
		NotifyOnFail:     true,
		DefaultSort:      "startTimeDesc",
		ItemsPerPage:     10,
		AutoOpenTypes:    "",
	}
}

// NormalizeAutoOpenTypes lowercases extensions, strips leading dots and drops empties
func NormalizeAutoOpenTypes(raw string) string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		ext = strings.TrimLeft(ext, ".")
		if ext != "" {
			out = append(out, ext)
		}
	}
	return strings.Join(out, ",")
}

// AutoOpenSet returns the configured auto-open extensions as a set
func (s *Settings) AutoOpenSet() map[string]bool {
	set := make(map[string]bool)
	normalized := NormalizeAutoOpenTypes(s.AutoOpenTypes)
	if normalized == "" {
		return set
	}
	for _, ext := range strings.Split(normalized, ",") {
		set[ext] = true
	}
	return set
}

// Get returns the string form of one setting
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case KeyTheme:
		return s.Theme, nil
	case KeyNotifyOnComplete:
		return strconv.FormatBool(s.NotifyOnComplete), nil
	case KeyNotifyOnFail:
		return strconv.FormatBool(s.NotifyOnFail), nil
	case KeyDefaultSort:
		return s.DefaultSort, nil
	case KeyItemsPerPage:
		return strconv.Itoa(s.ItemsPerPage), nil
	case KeyAutoOpenTypes:
		return s.AutoOpenTypes, nil
	default:
		return "", fmt.Errorf("unknown setting %q", key)
	}
}

// Set validates and assigns one setting from its string form
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyTheme:
		switch value {
		case ThemeSystem, ThemeLight, ThemeDark:
			s.Theme = value
		default:
			return fmt.Errorf("invalid theme %q (want system, light or dark)", value)
		}
	case KeyNotifyOnComplete, KeyNotifyOnFail:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %q", key, value)
		}
		if key == KeyNotifyOnComplete {
			s.NotifyOnComplete = b
		} else {
			s.NotifyOnFail = b
		}
	case KeyDefaultSort:
		if !isSortOrder(value) {
			return fmt.Errorf("invalid sort order %q", value)
		}
		s.DefaultSort = value
	case KeyItemsPerPage:
		n, err := strconv.Atoi(value)
		if err != nil || !isPageSize(n) {
			return fmt.Errorf("invalid items per page %q (want one of %v)", value, PageSizes)
		}
		s.ItemsPerPage = n
	case KeyAutoOpenTypes:
		s.AutoOpenTypes = NormalizeAutoOpenTypes(value)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Sanitize replaces invalid values with their defaults
func (s *Settings) Sanitize() {
	def := DefaultSettings()
	switch s.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		s.Theme = def.Theme
	}
	if !isSortOrder(s.DefaultSort) {
		s.DefaultSort = def.DefaultSort
	}
	if !isPageSize(s.ItemsPerPage) {
		s.ItemsPerPage = def.ItemsPerPage
	}
	s.AutoOpenTypes = NormalizeAutoOpenTypes(s.AutoOpenTypes)
}

func isSortOrder(v string) bool {
	for _, o := range SortOrders {
		if o == v {
			return true
		}
	}
	return false
}

func isPageSize(n int) bool {
	for _, p := range PageSizes {
		if p == n {
			return true
		}
	}
	return false
}
