// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"fmt"
	"slices"
)

// Credentials holds the bot token and the telegram user names allowed to
// talk to the bot. Notifications are sent to all of them.
type Credentials struct {
	Token string `json:"token"`

	Owner string `json:"owner"`

	Others []string `json:"others,omitempty"`
}

func (v *Credentials) Check() error {
	if len(v.Token) == 0 {
		return fmt.Errorf("bot token cannot be empty")
	}
	if len(v.Owner) == 0 {
		return fmt.Errorf("owner cannot be empty")
	}
	if slices.Contains(v.Others, "") {
		return fmt.Errorf("other users cannot have empty names")
	}
	if slices.Contains(v.Others, v.Owner) {
		return fmt.Errorf("owner should not be repeated in other users")
	}
	return nil
}

func (v *Credentials) users() []string {
	return append([]string{v.Owner}, v.Others...)
}
