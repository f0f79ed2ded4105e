package model

import (
	"fmt"
	"strings"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type AppMode string

const (
	AppModeTasks  AppMode = "tasks"
	AppModeBudget AppMode = "budget"
)

func ParseTheme(raw string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(raw))); t {
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q", raw)
	}
}

func ParseAppMode(raw string) (AppMode, error) {
	switch m := AppMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case AppModeTasks, AppModeBudget:
		return m, nil
	default:
		return "", fmt.Errorf("unknown app mode %q", raw)
	}
}

// Settings is the single per-user profile document.
type Settings struct {
	Theme       Theme
	DisplayName string
	AppMode     AppMode
	Email       string
}

// DefaultSettings is written when a user has no settings document yet.
func DefaultSettings() Settings {
	return Settings{
		Theme:       ThemeDark,
		DisplayName: "User",
		AppMode:     AppModeTasks,
		Email:       "",
	}
}

// Data returns the full document representation.
func (s Settings) Data() map[string]any {
	return map[string]any{
		"theme":       string(s.Theme),
		"displayName": s.DisplayName,
		"appMode":     string(s.AppMode),
		"email":       s.Email,
	}
}

// SettingsFromData overlays stored fields onto the defaults. Unknown enum
// values keep the default.
func SettingsFromData(data map[string]any) Settings {
	s := DefaultSettings()
	if v, err := ParseTheme(stringField(data, "theme")); err == nil {
		s.Theme = v
	}
	if v, err := ParseAppMode(stringField(data, "appMode")); err == nil {
		s.AppMode = v
	}
	if v, ok := data["displayName"].(string); ok {
		s.DisplayName = v
	}
	if v, ok := data["email"].(string); ok {
		s.Email = v
	}
	return s
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	Theme       *Theme
	DisplayName *string
	AppMode     *AppMode
	Email       *string
}

func (p SettingsPatch) Empty() bool {
	return p.Theme == nil && p.DisplayName == nil && p.AppMode == nil && p.Email == nil
}

// Apply merges the patch over prior.
func (p SettingsPatch) Apply(prior Settings) Settings {
	out := prior
	if p.Theme != nil {
		out.Theme = *p.Theme
	}
	if p.DisplayName != nil {
		out.DisplayName = *p.DisplayName
	}
	if p.AppMode != nil {
		out.AppMode = *p.AppMode
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	return out
}

// Data returns only the fields present in the patch, for a merge write.
func (p SettingsPatch) Data() map[string]any {
	data := make(map[string]any, 4)
	if p.Theme != nil {
		data["theme"] = string(*p.Theme)
	}
	if p.DisplayName != nil {
		data["displayName"] = *p.DisplayName
	}
	if p.AppMode != nil {
		data["appMode"] = string(*p.AppMode)
	}
	if p.Email != nil {
		data["email"] = *p.Email
	}
	return data
}
