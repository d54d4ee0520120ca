// Copyright (c) 2023 BVK Chaitanya

package gobs

import (
	"fmt"
)

func NewByTypename(typename string) (any, error) {
	var v any
	switch typename {
	case "KeyValue":
		v = new(KeyValue)
	case "ActorKey":
		v = new(ActorKey)
	case "FundingSplit":
		v = new(FundingSplit)
	case "RoundSummary":
		v = new(RoundSummary)
	case "DriverState":
		v = new(DriverState)
	case "TelegramState":
		v = new(TelegramState)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
