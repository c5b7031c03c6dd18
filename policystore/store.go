package policystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kekal/ModerationBot/botapi"
)

// Store holds the PolicySet in memory and writes the whole document through to a Backend after every mutation.
//
// All methods are safe for concurrent use. Getters return copies, so callers never observe a half-applied update.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu  sync.Mutex
	set PolicySet
}

func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "policystore"),
		set:     DefaultPolicySet(),
	}
}

// Load replaces the in-memory PolicySet with the stored document. It never fails: a missing document yields defaults, and an unreadable one is logged, discarded, and replaced by defaults.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set = DefaultPolicySet()
	raw, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNoDocument) {
		s.logger.Info("no stored policy, using defaults")
		return
	}
	if err != nil {
		s.logger.Error("failed to read stored policy, using defaults", "err", err)
		return
	}

	loaded := DefaultPolicySet()
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.logger.Error("stored policy is corrupt, discarding", "err", err)
		if err := s.backend.Discard(ctx); err != nil {
			s.logger.Warn("failed to discard corrupt policy", "err", err)
		}
		return
	}
	loaded.normalize()
	s.set = loaded
	groupCount.Set(float64(len(s.set.Groups)))
	s.logger.Info("loaded stored policy", "groups", len(s.set.Groups), "engaged", s.set.Engaged)
}

// persistLocked writes the document. Failures are logged and counted; the in-memory state stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	persistCount.Inc()
	groupCount.Set(float64(len(s.set.Groups)))
	doc, err := json.MarshalIndent(s.set, "", "  ")
	if err != nil {
		persistFailures.Inc()
		s.logger.Error("failed to encode policy", "err", err)
		return
	}
	if err := s.backend.Write(ctx, doc); err != nil {
		persistFailures.Inc()
		s.logger.Error("failed to persist policy", "err", err)
	}
}

// returns the live policy for a group, creating the default one if needed
func (s *Store) groupLocked(ctx context.Context, groupID int64) *GroupPolicy {
	gp, ok := s.set.Groups[groupID]
	if !ok {
		gp = DefaultGroupPolicy()
		s.set.Groups[groupID] = gp
		s.logger.Info("created default group policy", "group", groupID)
		s.persistLocked(ctx)
	}
	return gp
}

// GetGroupPolicy returns a copy of the group's policy. Unknown groups get a default policy, which is stored.
func (s *Store) GetGroupPolicy(ctx context.Context, groupID int64) *GroupPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupLocked(ctx, groupID).Clone()
}

// HasGroupPolicy reports whether a policy has been created for the group, without creating one.
func (s *Store) HasGroupPolicy(groupID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set.Groups[groupID]
	return ok
}

// SetGroupPolicy validates and applies a single setting, then persists. On error nothing changes.
func (s *Store) SetGroupPolicy(ctx context.Context, groupID int64, setting Setting, value any) error {
	return s.SetGroupPolicies(ctx, groupID, SettingChange{Setting: setting, Value: value})
}

type SettingChange struct {
	Setting Setting
	Value   any
}

// SetGroupPolicies applies changes in order as one update with a single persist. If any change is rejected, none are applied.
func (s *Store) SetGroupPolicies(ctx context.Context, groupID int64, changes ...SettingChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.groupLocked(ctx, groupID).Clone()
	for _, c := range changes {
		if err := applySetting(next, c.Setting, c.Value); err != nil {
			return err
		}
	}
	s.set.Groups[groupID] = next
	s.persistLocked(ctx)
	return nil
}

// ToggleGroupPolicy flips a boolean setting and returns the new value.
func (s *Store) ToggleGroupPolicy(ctx context.Context, groupID int64, setting Setting) (bool, error) {
	if !setting.IsBool() {
		return false, &InvalidSettingError{Setting: setting.String(), Reason: "not a toggle"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gp := s.groupLocked(ctx, groupID)
	var cur bool
	switch setting {
	case SettingBanUsers:
		cur = gp.BanUsers
	case SettingUseMute:
		cur = gp.UseMute
	case SettingSilentMode:
		cur = gp.SilentMode
	case SettingCleanNonGroupURL:
		cur = gp.CleanNonGroupURL
	case SettingDisableJoining:
		cur = gp.DisableJoining
	}
	next := gp.Clone()
	if err := applySetting(next, setting, !cur); err != nil {
		return false, err
	}
	s.set.Groups[groupID] = next
	s.persistLocked(ctx)
	return !cur, nil
}

// GetUserThrottle returns the stored throttle for a user. The second return is false when the user has no entry or the entry was cleared.
func (s *Store) GetUserThrottle(groupID, userID int64) (ThrottleState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gp, ok := s.set.Groups[groupID]
	if !ok {
		return ThrottleState{}, false
	}
	ts, ok := gp.ThrottledUsers[userID]
	if !ok || ts.ThrottleSeconds == 0 {
		return ts, false
	}
	return ts, true
}

func (s *Store) SetUserThrottle(ctx context.Context, groupID, userID int64, seconds uint, defaults botapi.ChatPermissions) error {
	if seconds == 0 {
		return &InvalidSettingError{Setting: "ThrottleSeconds", Reason: "must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gp := s.groupLocked(ctx, groupID)
	gp.ThrottledUsers[userID] = ThrottleState{
		ThrottleSeconds:    seconds,
		DefaultPermissions: defaults,
	}
	s.persistLocked(ctx)
	return nil
}

// ClearUserThrottle zeroes the user's throttle and returns the previous state, which carries the permissions to restore.
func (s *Store) ClearUserThrottle(ctx context.Context, groupID, userID int64) (ThrottleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gp, ok := s.set.Groups[groupID]
	if !ok {
		return ThrottleState{}, fmt.Errorf("no policy for group %d", groupID)
	}
	prev, ok := gp.ThrottledUsers[userID]
	if !ok || prev.ThrottleSeconds == 0 {
		return ThrottleState{}, fmt.Errorf("user %d is not throttled in group %d", userID, groupID)
	}
	gp.ThrottledUsers[userID] = ThrottleState{DefaultPermissions: prev.DefaultPermissions}
	s.persistLocked(ctx)
	return prev, nil
}

func (s *Store) Engaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Engaged
}

func (s *Store) SetEngaged(ctx context.Context, engaged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set.Engaged == engaged {
		return
	}
	s.set.Engaged = engaged
	s.persistLocked(ctx)
}

func (s *Store) LogSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.LogSize
}

// Snapshot returns a deep copy of the whole PolicySet.
func (s *Store) Snapshot() PolicySet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Clone()
}
