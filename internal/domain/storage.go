package domain

// SessionRecord is the persisted shape of a signed-in session.
type SessionRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// UsageRecord tracks accepted queries for one calendar day.
type UsageRecord struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// WindowSettings holds chat-window preferences.
type WindowSettings struct {
	Width       int  `json:"width"`
	Height      int  `json:"height"`
	AlwaysOnTop bool `json:"always_on_top"`
	AutoHide    bool `json:"auto_hide"`
	Resizable   bool `json:"resizable"`
}

// ShortcutSettings holds global keyboard shortcuts.
type ShortcutSettings struct {
	ToggleChat string `json:"toggle_chat"`
}

// ScreenshotSettings holds capture preferences.
type ScreenshotSettings struct {
	MaxHeight int `json:"max_height"`
}

// SettingsRecord is the persisted user settings document.
type SettingsRecord struct {
	Window     WindowSettings     `json:"window"`
	Shortcuts  ShortcutSettings   `json:"shortcuts"`
	Theme      string             `json:"theme"`
	Screenshot ScreenshotSettings `json:"screenshot"`
}

// DefaultSettings returns the settings applied on first run.
func DefaultSettings() SettingsRecord {
	return SettingsRecord{
		Window:     WindowSettings{Width: 420, Height: 640, AlwaysOnTop: true, AutoHide: true, Resizable: true},
		Shortcuts:  ShortcutSettings{ToggleChat: "ctrl+space"},
		Theme:      "dark",
		Screenshot: ScreenshotSettings{MaxHeight: 720},
	}
}

// SessionStore persists the signed-in session record.
// Load returns ErrSessionNotFound (possibly wrapped) when nothing is stored.
type SessionStore interface {
	SaveSession(rec SessionRecord) error
	LoadSession() (*SessionRecord, error)
	ClearSession() error
}

// UsageStore persists the daily usage counter.
// Load returns a zero-count record for today when nothing is stored.
type UsageStore interface {
	SaveUsage(rec UsageRecord) error
	LoadUsage() (UsageRecord, error)
}

// SettingsStore persists the user settings record.
type SettingsStore interface {
	SaveSettings(rec SettingsRecord) error
	LoadSettings() (SettingsRecord, error)
	// SettingsPath reports where the settings live, for display purposes.
	SettingsPath() string
}
