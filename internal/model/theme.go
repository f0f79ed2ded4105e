package model

// PresentationTheme holds the decorations the shell uses for a theme.
type PresentationTheme struct {
	Icon    string
	Bullet  string
	Income  string
	Expense string
	Divider string
}

var presentationThemes = map[Theme]PresentationTheme{
	ThemeLight: {Icon: "☀️", Bullet: "▫️", Income: "🟢", Expense: "🔴", Divider: "────────"},
	ThemeDark:  {Icon: "🌙", Bullet: "▪️", Income: "💚", Expense: "❤️", Divider: "━━━━━━━━"},
}

// Presentation returns the table entry for t, falling back to dark.
func (t Theme) Presentation() PresentationTheme {
	if p, ok := presentationThemes[t]; ok {
		return p
	}
	return presentationThemes[ThemeDark]
}
