package policystore

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSetting = errors.New("invalid setting")

// InvalidSettingError describes a rejected policy update. It matches ErrInvalidSetting with errors.Is.
type InvalidSettingError struct {
	Setting string
	Reason  string
}

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("invalid setting %q: %s", e.Setting, e.Reason)
}

func (e *InvalidSettingError) Is(target error) bool {
	return target == ErrInvalidSetting
}

// A writable GroupPolicy field.
type Setting int

const (
	SettingBanUsers Setting = iota + 1
	SettingUseMute
	SettingSpamTimeWindow
	SettingRestrictionDuration
	SettingSilentMode
	SettingCleanNonGroupURL
	SettingDisableJoining
)

const (
	MinSpamTimeWindow = 1 * time.Second
	MaxSpamTimeWindow = 255 * time.Second
)

var settingNames = map[Setting]string{
	SettingBanUsers:            "BanUsers",
	SettingUseMute:             "UseMute",
	SettingSpamTimeWindow:      "SpamTimeWindow",
	SettingRestrictionDuration: "RestrictionDuration",
	SettingSilentMode:          "SilentMode",
	SettingCleanNonGroupURL:    "CleanNonGroupUrl",
	SettingDisableJoining:      "DisableJoining",
}

func (s Setting) String() string {
	if name, ok := settingNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Setting(%d)", int(s))
}

func (s Setting) IsBool() bool {
	switch s {
	case SettingBanUsers, SettingUseMute, SettingSilentMode, SettingCleanNonGroupURL, SettingDisableJoining:
		return true
	}
	return false
}

func ParseSetting(name string) (Setting, error) {
	for s, n := range settingNames {
		if n == name {
			return s, nil
		}
	}
	return 0, &InvalidSettingError{Setting: name, Reason: "unknown setting"}
}

func typeError(s Setting, want string, value any) error {
	return &InvalidSettingError{Setting: s.String(), Reason: fmt.Sprintf("expected %s, got %T", want, value)}
}

// Applies value to gp, enforcing value types, ranges, and the ban/mute exclusivity.
func applySetting(gp *GroupPolicy, s Setting, value any) error {
	if s.IsBool() {
		v, ok := value.(bool)
		if !ok {
			return typeError(s, "bool", value)
		}
		switch s {
		case SettingBanUsers:
			gp.BanUsers = v
			if v {
				gp.UseMute = false
			}
		case SettingUseMute:
			gp.UseMute = v
			if v {
				gp.BanUsers = false
			}
		case SettingSilentMode:
			gp.SilentMode = v
		case SettingCleanNonGroupURL:
			gp.CleanNonGroupURL = v
		case SettingDisableJoining:
			gp.DisableJoining = v
		}
		return nil
	}

	switch s {
	case SettingSpamTimeWindow:
		v, ok := value.(time.Duration)
		if !ok {
			return typeError(s, "time.Duration", value)
		}
		if v < MinSpamTimeWindow || v > MaxSpamTimeWindow {
			return &InvalidSettingError{Setting: s.String(), Reason: fmt.Sprintf("must be between %s and %s", MinSpamTimeWindow, MaxSpamTimeWindow)}
		}
		gp.SpamTimeWindow = Duration(v)
	case SettingRestrictionDuration:
		var d *time.Duration
		switch v := value.(type) {
		case nil:
		case *time.Duration:
			d = v
		case time.Duration:
			d = &v
		default:
			return typeError(s, "time.Duration or *time.Duration", value)
		}
		if d == nil {
			gp.RestrictionDuration = nil
			return nil
		}
		if *d <= 0 {
			return &InvalidSettingError{Setting: s.String(), Reason: "must be positive (nil for forever)"}
		}
		rd := Duration(*d)
		gp.RestrictionDuration = &rd
	default:
		return &InvalidSettingError{Setting: s.String(), Reason: "unknown setting"}
	}
	return nil
}
