// Package kit turns an extracted kit tree into the items ck installs.
//
// The scanner maps the kit layout onto item types, the renderer produces the
// bytes written for a provider, and ComposeSections builds the single
// document used by merge-single targets.
package kit

import (
	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// Type is the kind of artifact an item is.
type Type string

const (
	TypeAgent   Type = "agent"
	TypeCommand Type = "command"
	TypeSkill   Type = "skill"
	TypeConfig  Type = "config"
	TypeRules   Type = "rules"
	TypeHooks   Type = "hooks"
)

// Types lists every item type in presentation order.
func Types() []Type {
	return []Type{TypeAgent, TypeCommand, TypeSkill, TypeConfig, TypeRules, TypeHooks}
}

// ParseType validates s as a Type.
func ParseType(s string) (Type, error) {
	for _, t := range Types() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.Wrapf(errors.ErrUnsupportedType, "unknown item type %q", s)
}

// Item is one installable artifact read from the kit.
type Item struct {
	Name        string
	Type        Type
	Description string
	// SourcePath is relative to the kit root, forward-slash separated.
	SourcePath string
	Content    []byte
}

// Checksum is the hash of the item's source content.
func (i Item) Checksum() string {
	return checksum.Bytes(i.Content)
}
