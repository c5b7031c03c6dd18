package policystore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kekal/ModerationBot/botapi"
)

const (
	DefaultSpamTimeWindow      = 10 * time.Second
	DefaultRestrictionDuration = 24 * time.Hour
	DefaultLogSize             = 30
)

// Duration is encoded as a Go duration string ("10s", "24h0m0s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type ThrottleState struct {
	ThrottleSeconds uint `json:"throttleSeconds"`
	// group default member permissions captured when the throttle was set
	DefaultPermissions botapi.ChatPermissions `json:"defaultPermissions"`
}

func (ts ThrottleState) Duration() time.Duration {
	return time.Duration(ts.ThrottleSeconds) * time.Second
}

// Moderation configuration of a single group.
type GroupPolicy struct {
	BanUsers       bool     `json:"banUsers"`
	UseMute        bool     `json:"useMute"`
	SpamTimeWindow Duration `json:"spamTimeWindow"`
	// nil means restrictions never expire
	RestrictionDuration *Duration               `json:"restrictionDuration"`
	SilentMode          bool                    `json:"silentMode"`
	CleanNonGroupURL    bool                    `json:"cleanNonGroupUrl"`
	DisableJoining      bool                    `json:"disableJoining"`
	ThrottledUsers      map[int64]ThrottleState `json:"throttledUsers"`
}

func DefaultGroupPolicy() *GroupPolicy {
	rd := Duration(DefaultRestrictionDuration)
	return &GroupPolicy{
		UseMute:             true,
		SpamTimeWindow:      Duration(DefaultSpamTimeWindow),
		RestrictionDuration: &rd,
		ThrottledUsers:      make(map[int64]ThrottleState),
	}
}

func (gp *GroupPolicy) Window() time.Duration {
	return time.Duration(gp.SpamTimeWindow)
}

// Returns the restriction length, and false when restrictions are permanent.
func (gp *GroupPolicy) Restriction() (time.Duration, bool) {
	if gp.RestrictionDuration == nil {
		return 0, false
	}
	return time.Duration(*gp.RestrictionDuration), true
}

func (gp *GroupPolicy) Clone() *GroupPolicy {
	out := *gp
	if gp.RestrictionDuration != nil {
		rd := *gp.RestrictionDuration
		out.RestrictionDuration = &rd
	}
	out.ThrottledUsers = make(map[int64]ThrottleState, len(gp.ThrottledUsers))
	for k, v := range gp.ThrottledUsers {
		out.ThrottledUsers[k] = v
	}
	return &out
}

// repairs documents written by hand or by older versions
func (gp *GroupPolicy) normalize() {
	if gp.BanUsers && gp.UseMute {
		gp.UseMute = false
	}
	if gp.SpamTimeWindow <= 0 {
		gp.SpamTimeWindow = Duration(DefaultSpamTimeWindow)
	}
	if gp.ThrottledUsers == nil {
		gp.ThrottledUsers = make(map[int64]ThrottleState)
	}
}

// Process-wide moderation configuration: the whole persisted document.
type PolicySet struct {
	Engaged bool                   `json:"engaged"`
	LogSize int                    `json:"logSize"`
	Groups  map[int64]*GroupPolicy `json:"groups"`
}

func DefaultPolicySet() PolicySet {
	return PolicySet{
		Engaged: true,
		LogSize: DefaultLogSize,
		Groups:  make(map[int64]*GroupPolicy),
	}
}

func (ps PolicySet) Clone() PolicySet {
	out := ps
	out.Groups = make(map[int64]*GroupPolicy, len(ps.Groups))
	for k, v := range ps.Groups {
		out.Groups[k] = v.Clone()
	}
	return out
}

func (ps *PolicySet) normalize() {
	if ps.LogSize <= 0 {
		ps.LogSize = DefaultLogSize
	}
	if ps.Groups == nil {
		ps.Groups = make(map[int64]*GroupPolicy)
	}
	for id, gp := range ps.Groups {
		if gp == nil {
			delete(ps.Groups, id)
			continue
		}
		gp.normalize()
	}
}
