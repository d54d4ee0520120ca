// Copyright (c) 2023 BVK Chaitanya

package config

import (
	"encoding/json"
	"os"

	"github.com/bvk/volumebot/pushover"
	"github.com/bvk/volumebot/telegram"
)

// Secrets holds the optional notification credentials kept in the data
// directory.
type Secrets struct {
	Pushover *pushover.Keys        `json:"pushover"`
	Telegram *telegram.Credentials `json:"telegram"`
}

func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (v *Secrets) Check() error {
	if v.Pushover != nil {
		if err := v.Pushover.Check(); err != nil {
			return err
		}
	}
	if v.Telegram != nil {
		if err := v.Telegram.Check(); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile saves the secrets readable only by the owner.
func (v *Secrets) WriteFile(fpath string) error {
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fpath, js, os.FileMode(0600))
}
