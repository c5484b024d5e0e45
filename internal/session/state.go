package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/vocal-vent/internal/prefs"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// State is one visitor's restored session: durable selections, settings,
// notifications and flags. It is owned by the visitor's page controller and
// passed by reference; nothing here is process-global.
type State struct {
	CurrentBooking *BookingSelection
	CurrentChat    *ChatSelection
	Settings       Settings
	Notifications  *NotificationLog
	DarkMode       bool
	AdminLoggedIn  bool
	AgreedAt       *time.Time

	// keys Restore could not read; never written back until reloaded
	unread map[string]bool
}

// NewState returns a state holding only built-in defaults.
func NewState(notificationLimit int) *State {
	return &State{
		Settings:      DefaultSettings(),
		Notifications: NewNotificationLog(notificationLimit),
	}
}

// SelectPackage records a booking selection, replacing any previous one.
func (s *State) SelectPackage(packageID, price string, at time.Time) {
	s.CurrentBooking = &BookingSelection{
		PackageID:  strings.TrimSpace(packageID),
		Price:      strings.TrimSpace(price),
		SelectedAt: at.UTC(),
	}
}

// SelectPlatform records a chat platform selection, replacing any previous one.
func (s *State) SelectPlatform(platform string, at time.Time) {
	s.CurrentChat = &ChatSelection{
		Platform:   strings.TrimSpace(platform),
		SelectedAt: at.UTC(),
	}
}

// SelectDuration attaches a duration to the current chat selection.
func (s *State) SelectDuration(duration, price string) error {
	if s.CurrentChat == nil {
		return ErrNoChatSelection
	}
	s.CurrentChat.Duration = duration
	s.CurrentChat.Price = price
	return nil
}

// Unread lists the keys that could not be read from storage.
func (s *State) Unread() []string {
	keys := make([]string, 0, len(s.unread))
	for _, key := range prefs.AllKeys() {
		if s.unread[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *State) markUnread(key string) {
	if s.unread == nil {
		s.unread = make(map[string]bool)
	}
	s.unread[key] = true
}

// Agreed reports whether the visitor accepted the disclaimer.
func (s *State) Agreed() bool {
	return s.AgreedAt != nil
}

// Agree records disclaimer acceptance; the first acceptance wins.
func (s *State) Agree(at time.Time) {
	if s.AgreedAt == nil {
		t := at.UTC()
		s.AgreedAt = &t
	}
}

// ErrNoChatSelection is returned when a duration is chosen before a platform.
var ErrNoChatSelection = errors.New("session: no chat platform selected")

// StorageObserver is told about every degraded preference read or write.
type StorageObserver interface {
	ObserveStorageError(op, key string)
}

// Manager restores and persists session state through a preference store.
type Manager struct {
	logger            *logging.Logger
	notificationLimit int
	observer          StorageObserver
}

// NewManager creates a session manager.
func NewManager(notificationLimit int, observer StorageObserver, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if notificationLimit <= 0 {
		notificationLimit = DefaultNotificationLimit
	}
	return &Manager{logger: logger, notificationLimit: notificationLimit, observer: observer}
}

// Restore reads every known key independently and merges them over the
// built-in defaults, so it always yields a complete state. A malformed key
// falls back to its default. A key the store could not read is left at its
// default and marked unread: Persist will not overwrite it and Reload retries
// it. The returned error joins the StorageErrors of the unread keys.
func (m *Manager) Restore(ctx context.Context, store prefs.Store) (*State, error) {
	state := NewState(m.notificationLimit)
	var errs []error
	for _, key := range prefs.AllKeys() {
		if err := m.read(ctx, store, state, key); err != nil {
			state.markUnread(key)
			errs = append(errs, err)
		}
	}
	return state, errors.Join(errs...)
}

// Reload retries the keys an earlier Restore could not read and adopts
// their stored values. The in-memory value of an unread key was never
// persisted, so the stored one wins.
func (m *Manager) Reload(ctx context.Context, store prefs.Store, state *State) error {
	if state == nil || len(state.unread) == 0 {
		return nil
	}
	retry := make([]string, 0, len(prefs.AllKeys()))
	for _, key := range prefs.AllKeys() {
		// a reloaded snapshot carries a stale settings copy; the shared
		// groups are read again after it so they keep precedence.
		if state.unread[key] || (state.unread[prefs.KeyAppState] && prefs.IsShared(key)) {
			retry = append(retry, key)
		}
	}
	var errs []error
	for _, key := range retry {
		if err := m.read(ctx, store, state, key); err != nil {
			state.markUnread(key)
			errs = append(errs, err)
			continue
		}
		delete(state.unread, key)
	}
	if len(state.unread) == 0 {
		state.unread = nil
	}
	return errors.Join(errs...)
}

// read loads key and applies it to state. Only a failed read is returned;
// a missing or malformed value leaves the default in place.
func (m *Manager) read(ctx context.Context, store prefs.Store, state *State, key string) error {
	var (
		target any
		apply  func()
	)
	switch key {
	case prefs.KeyAppState:
		var snapshot appState
		target, apply = &snapshot, func() {
			state.CurrentBooking = snapshot.CurrentBooking
			state.CurrentChat = snapshot.CurrentChat
			if snapshot.Settings != nil {
				state.Settings = mergeSettings(state.Settings, *snapshot.Settings)
			}
		}
	case prefs.KeyContactSettings:
		var contacts Contacts
		target, apply = &contacts, func() { state.Settings.ApplyGroup(key, contacts) }
	case prefs.KeyPackagePricing:
		var pricing Pricing
		target, apply = &pricing, func() { state.Settings.ApplyGroup(key, pricing) }
	case prefs.KeyChatSettings:
		var chat ChatSettings
		target, apply = &chat, func() { state.Settings.ApplyGroup(key, chat) }
	case prefs.KeyNotifications:
		notifications := NewNotificationLog(m.notificationLimit)
		target, apply = notifications, func() { state.Notifications = notifications }
	case prefs.KeyDarkMode:
		var dark bool
		target, apply = &dark, func() { state.DarkMode = dark }
	case prefs.KeyAdminLoggedIn:
		var admin bool
		target, apply = &admin, func() { state.AdminLoggedIn = admin }
	case prefs.KeyAgreement:
		var agreedAt time.Time
		target, apply = &agreedAt, func() {
			if !agreedAt.IsZero() {
				t := agreedAt.UTC()
				state.AgreedAt = &t
			}
		}
	default:
		return nil
	}

	found, err := prefs.GetJSON(ctx, store, key, target)
	if err != nil {
		m.degraded("get", key, err)
		if isDecodeError(err) {
			return nil
		}
		return err
	}
	if found {
		apply()
	}
	return nil
}

// Persist writes the durable subset of state. Every key is attempted even if
// an earlier one fails; the failures are logged and returned joined. Keys
// Restore could not read are skipped so their stored values survive.
func (m *Manager) Persist(ctx context.Context, store prefs.Store, state *State) error {
	if state == nil {
		return nil
	}
	settings := state.Settings
	writes := []struct {
		key   string
		value any
	}{
		{prefs.KeyAppState, appState{
			CurrentBooking: state.CurrentBooking,
			CurrentChat:    state.CurrentChat,
			Settings:       &settings,
		}},
		{prefs.KeyNotifications, state.Notifications},
		{prefs.KeyDarkMode, state.DarkMode},
		{prefs.KeyAdminLoggedIn, state.AdminLoggedIn},
	}
	if state.AgreedAt != nil {
		writes = append(writes, struct {
			key   string
			value any
		}{prefs.KeyAgreement, state.AgreedAt})
	}

	var errs []error
	for _, w := range writes {
		if state.unread[w.key] {
			m.logger.Debug("session: skipping unread key", "key", w.key)
			continue
		}
		if err := prefs.SetJSON(ctx, store, w.key, w.value); err != nil {
			m.degraded("set", w.key, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveSettingGroup overwrites one shared setting group wholesale.
func (m *Manager) SaveSettingGroup(ctx context.Context, store prefs.Store, key string, value any) error {
	if !prefs.IsShared(key) {
		return &prefs.StorageError{Op: "set", Key: key, Err: ErrUnknownSettingGroup}
	}
	if err := prefs.SetJSON(ctx, store, key, value); err != nil {
		m.degraded("set", key, err)
		return err
	}
	return nil
}

// ErrUnknownSettingGroup is returned for a key that is not an operator setting group.
var ErrUnknownSettingGroup = errors.New("unknown setting group")

func isDecodeError(err error) bool {
	var se *prefs.StorageError
	return errors.As(err, &se) && se.Op == "decode"
}

func (m *Manager) degraded(op, key string, err error) {
	m.logger.Warn("session: preference storage degraded", "op", op, "key", key, "error", err)
	if m.observer != nil {
		m.observer.ObserveStorageError(op, key)
	}
}

func mergeSettings(base Settings, stored Settings) Settings {
	out := base
	if !stored.Contacts.isZero() {
		out.Contacts = stored.Contacts
	}
	if stored.Pricing != nil {
		out.Pricing = stored.Pricing.mergedOver(base.Pricing)
	}
	if stored.Chat != nil {
		out.Chat = stored.Chat
	}
	return out
}
