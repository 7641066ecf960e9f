package broadcaster

import (
	"fmt"
	"time"
)

// DuplicatePolicy decides what happens when a user opens a second stream
// while one is registered.
type DuplicatePolicy string

const (
	// ReplacePrevious closes the registered stream and keeps the new one.
	ReplacePrevious DuplicatePolicy = "replace"
	// RejectDuplicate keeps the registered stream and refuses the new one.
	RejectDuplicate DuplicatePolicy = "reject"
)

const DefaultHeartbeatInterval = 30 * time.Second

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch policy := DuplicatePolicy(s); policy {
	case ReplacePrevious, RejectDuplicate:
		return policy, nil
	case "":
		return ReplacePrevious, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

type Options struct {
	// HeartbeatInterval of zero or less disables keep-alive writes.
	HeartbeatInterval time.Duration
	DuplicatePolicy   DuplicatePolicy
}

func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: DefaultHeartbeatInterval,
		DuplicatePolicy:   ReplacePrevious,
	}
}
