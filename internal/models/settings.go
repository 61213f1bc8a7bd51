package models

import (
	"fmt"
	"slices"
	"strings"
)

// Section names one independently fetched settings document.
type Section string

const (
	SectionTheme         Section = "theme"
	SectionLanguage      Section = "language"
	SectionSecurity      Section = "security"
	SectionNotifications Section = "notifications"
	SectionPrivacy       Section = "privacy"
	SectionFull          Section = "full"
)

// Sections lists every section in display order.
var Sections = []Section{SectionTheme, SectionLanguage, SectionSecurity, SectionNotifications, SectionPrivacy, SectionFull}

// ParseSection converts user input (case-insensitive) into a [Section].
func ParseSection(s string) (Section, error) {
	sec := Section(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Sections, sec) {
		return "", fmt.Errorf("unknown section %q", s)
	}
	return sec, nil
}

func (s Section) String() string { return string(s) }

// ThemeSettings controls presentation.
type ThemeSettings struct {
	AccentColor      *string           `json:"accent_color" yaml:"accent_color"`
	BorderRadius     int               `json:"border_radius" yaml:"border_radius"`
	CompactMode      bool              `json:"compact_mode" yaml:"compact_mode"`
	TransitionSpeed  string            `json:"transition_speed" yaml:"transition_speed"`
	Theme            string            `json:"theme" yaml:"theme"`
	FontSize         string            `json:"font_size" yaml:"font_size"`
	HighContrast     bool              `json:"high_contrast" yaml:"high_contrast"`
	BackgroundImage  *string           `json:"background_image" yaml:"background_image"`
	CustomPalette    map[string]string `json:"custom_palette" yaml:"custom_palette"`
	AnimationEnabled bool              `json:"animation_enabled" yaml:"animation_enabled"`
}

func DefaultThemeSettings() ThemeSettings {
	accent := "#007bff"
	return ThemeSettings{
		AccentColor:      &accent,
		BorderRadius:     4,
		TransitionSpeed:  "normal",
		Theme:            "light",
		FontSize:         "medium",
		CustomPalette:    map[string]string{},
		AnimationEnabled: true,
	}
}

func (t ThemeSettings) IsDarkMode() bool { return strings.EqualFold(t.Theme, "dark") }

// LanguageSettings controls locale and formatting.
type LanguageSettings struct {
	SpellcheckEnabled bool     `json:"spellcheck_enabled" yaml:"spellcheck_enabled"`
	AutoTranslate     bool     `json:"auto_translate" yaml:"auto_translate"`
	PreferredVoice    *string  `json:"preferred_voice" yaml:"preferred_voice"`
	Language          string   `json:"language" yaml:"language"`
	Region            *string  `json:"region" yaml:"region"`
	FallbackLanguages []string `json:"fallback_languages" yaml:"fallback_languages"`
	DateFormat        string   `json:"date_format" yaml:"date_format"`
	TimeFormat        string   `json:"time_format" yaml:"time_format"`
}

func DefaultLanguageSettings() LanguageSettings {
	return LanguageSettings{
		SpellcheckEnabled: true,
		Language:          "en",
		FallbackLanguages: []string{},
		DateFormat:        "YYYY-MM-DD",
		TimeFormat:        "24h",
	}
}

// SecuritySettings controls account protection.
type SecuritySettings struct {
	BiometricEnabled         bool     `json:"biometric_enabled" yaml:"biometric_enabled"`
	LoginHistoryLimit        int      `json:"login_history_limit" yaml:"login_history_limit"`
	SuspiciousActivityAlerts bool     `json:"suspicious_activity_alerts" yaml:"suspicious_activity_alerts"`
	TwoFactorEnabled         bool     `json:"two_factor_enabled" yaml:"two_factor_enabled"`
	LoginAlerts              bool     `json:"login_alerts" yaml:"login_alerts"`
	Devices                  []string `json:"devices" yaml:"devices"`
	BackupCodesEnabled       bool     `json:"backup_codes_enabled" yaml:"backup_codes_enabled"`
	PasswordExpiryDays       int      `json:"password_expiry_days" yaml:"password_expiry_days"`
	SecurityQuestions        []string `json:"security_questions" yaml:"security_questions"`
}

func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{
		LoginHistoryLimit:        10,
		SuspiciousActivityAlerts: true,
		LoginAlerts:              true,
		Devices:                  []string{},
		PasswordExpiryDays:       90,
		SecurityQuestions:        []string{},
	}
}

// SecurityLevel returns "high" with biometrics and two-factor, "medium" with two-factor only, else "low".
func (s SecuritySettings) SecurityLevel() string {
	switch {
	case s.BiometricEnabled && s.TwoFactorEnabled:
		return "high"
	case s.TwoFactorEnabled:
		return "medium"
	default:
		return "low"
	}
}

func (s SecuritySettings) IsStrongSecurity() bool {
	return s.TwoFactorEnabled && s.BackupCodesEnabled && s.PasswordExpiryDays <= 90
}

// NotificationSettings controls delivery channels.
type NotificationSettings struct {
	AppUpdates             bool    `json:"app_updates" yaml:"app_updates"`
	EventReminders         bool    `json:"event_reminders" yaml:"event_reminders"`
	SoundAlerts            bool    `json:"sound_alerts" yaml:"sound_alerts"`
	NotificationSchedule   *string `json:"notification_schedule" yaml:"notification_schedule"`
	EmailNotifications     bool    `json:"email_notifications" yaml:"email_notifications"`
	PushNotifications      bool    `json:"push_notifications" yaml:"push_notifications"`
	SMSNotifications       bool    `json:"sms_notifications" yaml:"sms_notifications"`
	NewsletterSubscribed   bool    `json:"newsletter_subscribed" yaml:"newsletter_subscribed"`
	MarketingNotifications bool    `json:"marketing_notifications" yaml:"marketing_notifications"`
	ProductUpdates         bool    `json:"product_updates" yaml:"product_updates"`
	WeeklySummary          bool    `json:"weekly_summary" yaml:"weekly_summary"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		AppUpdates:         true,
		SoundAlerts:        true,
		EmailNotifications: true,
		PushNotifications:  true,
		ProductUpdates:     true,
		WeeklySummary:      true,
	}
}

func (n NotificationSettings) Summary() string {
	return fmt.Sprintf("Email: %t, Push: %t, SMS: %t", n.EmailNotifications, n.PushNotifications, n.SMSNotifications)
}

// PrivacySettings controls visibility.
type PrivacySettings struct {
	AllowMessageRequests bool     `json:"allow_message_requests" yaml:"allow_message_requests"`
	HideActivityStatus   bool     `json:"hide_activity_status" yaml:"hide_activity_status"`
	AdPersonalization    bool     `json:"ad_personalization" yaml:"ad_personalization"`
	PrivacyLevel         string   `json:"privacy_level" yaml:"privacy_level"`
	ProfileVisible       bool     `json:"profile_visible" yaml:"profile_visible"`
	SearchEngineIndex    bool     `json:"search_engine_index" yaml:"search_engine_index"`
	AllowFriendRequests  bool     `json:"allow_friend_requests" yaml:"allow_friend_requests"`
	BlockedUsers         []string `json:"blocked_users" yaml:"blocked_users"`
	AllowTagging         bool     `json:"allow_tagging" yaml:"allow_tagging"`
	ShowOnlineStatus     bool     `json:"show_online_status" yaml:"show_online_status"`
	DataSharing          bool     `json:"data_sharing" yaml:"data_sharing"`
}

func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		AllowMessageRequests: true,
		PrivacyLevel:         "standard",
		ProfileVisible:       true,
		AllowFriendRequests:  true,
		BlockedUsers:         []string{},
		AllowTagging:         true,
		ShowOnlineStatus:     true,
	}
}

func (p PrivacySettings) IsPrivate() bool {
	return !p.ProfileVisible || !p.AllowFriendRequests || p.HideActivityStatus
}

// UserSettings is the full settings document.
type UserSettings struct {
	UserID        string               `json:"user_id" yaml:"user_id"`
	Notifications NotificationSettings `json:"notifications" yaml:"notifications"`
	Privacy       PrivacySettings      `json:"privacy" yaml:"privacy"`
	Theme         ThemeSettings        `json:"theme" yaml:"theme"`
	Language      LanguageSettings     `json:"language" yaml:"language"`
	Security      SecuritySettings     `json:"security" yaml:"security"`
}

// DefaultUserSettings returns the document the backend creates for a new user.
func DefaultUserSettings(userID UserID) UserSettings {
	return UserSettings{
		UserID:        string(userID),
		Notifications: DefaultNotificationSettings(),
		Privacy:       DefaultPrivacySettings(),
		Theme:         DefaultThemeSettings(),
		Language:      DefaultLanguageSettings(),
		Security:      DefaultSecuritySettings(),
	}
}

// SettingsUpdate is a sparse full-document update; nil sections are left unchanged by the server.
type SettingsUpdate struct {
	Notifications *NotificationSettings `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Privacy       *PrivacySettings      `json:"privacy,omitempty" yaml:"privacy,omitempty"`
	Theme         *ThemeSettings        `json:"theme,omitempty" yaml:"theme,omitempty"`
	Language      *LanguageSettings     `json:"language,omitempty" yaml:"language,omitempty"`
	Security      *SecuritySettings     `json:"security,omitempty" yaml:"security,omitempty"`
}

// Empty reports whether no section is set.
func (u SettingsUpdate) Empty() bool {
	return u.Notifications == nil && u.Privacy == nil && u.Theme == nil && u.Language == nil && u.Security == nil
}

// Apply returns s with every non-nil section of u replacing its counterpart.
func (u SettingsUpdate) Apply(s UserSettings) UserSettings {
	if u.Notifications != nil {
		s.Notifications = *u.Notifications
	}
	if u.Privacy != nil {
		s.Privacy = *u.Privacy
	}
	if u.Theme != nil {
		s.Theme = *u.Theme
	}
	if u.Language != nil {
		s.Language = *u.Language
	}
	if u.Security != nil {
		s.Security = *u.Security
	}
	return s
}
