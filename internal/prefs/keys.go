package prefs

// Persisted preference keys. The names are stable; changing one orphans
// every visitor's stored value.
const (
	KeyAppState        = "vocalVentState"
	KeyNotifications   = "vocalVentNotifications"
	KeyContactSettings = "contactSettings"
	KeyPackagePricing  = "packagePricing"
	KeyChatSettings    = "chatSettings"
	KeyDarkMode        = "darkMode"
	KeyAdminLoggedIn   = "adminLoggedIn"
	KeyAgreement       = "vocalVentAgreement"
)

// SiteScope is the namespace shared by every visitor.
const SiteScope = "site"

// sharedKeys are the setting groups an operator edits once for everybody.
var sharedKeys = map[string]bool{
	KeyContactSettings: true,
	KeyPackagePricing:  true,
	KeyChatSettings:    true,
}

// IsShared reports whether key lives in the site-wide scope.
func IsShared(key string) bool {
	return sharedKeys[key]
}

// AllKeys lists every key the session layer reads on restore.
func AllKeys() []string {
	return []string{
		KeyAppState,
		KeyNotifications,
		KeyContactSettings,
		KeyPackagePricing,
		KeyChatSettings,
		KeyDarkMode,
		KeyAdminLoggedIn,
		KeyAgreement,
	}
}
