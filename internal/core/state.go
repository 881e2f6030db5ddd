package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResourceVersionStrategy selects the resourceVersion of the first
// connection of a session (reconnects prefer the last observed
// version).
type ResourceVersionStrategy string

const (
	// StrategyCurrent lists the endpoint with limit=1 and starts from
	// the list's resourceVersion.
	StrategyCurrent ResourceVersionStrategy = "CURRENT"
	// StrategyNull starts from the server default (no parameter).
	StrategyNull ResourceVersionStrategy = "NULL"
	// StrategyZero starts from "0" (server replays its cache).
	StrategyZero ResourceVersionStrategy = "ZERO"
	// StrategyRestoreNull resumes from the persisted checkpoint when
	// its endpoint hash matches, falling back to StrategyNull.
	StrategyRestoreNull ResourceVersionStrategy = "RESTORE-NULL"
	// StrategyRestoreCurrent resumes from the persisted checkpoint
	// when its endpoint hash matches, falling back to StrategyCurrent.
	StrategyRestoreCurrent ResourceVersionStrategy = "RESTORE-CURRENT"
)

// ParseResourceVersionStrategy validates a configured strategy name.
// The empty string maps to StrategyCurrent.
func ParseResourceVersionStrategy(s string) (ResourceVersionStrategy, error) {
	switch v := ResourceVersionStrategy(strings.ToUpper(s)); v {
	case "":
		return StrategyCurrent, nil
	case StrategyCurrent, StrategyNull, StrategyZero, StrategyRestoreNull, StrategyRestoreCurrent:
		return v, nil
	default:
		return "", &ErrInvalidInput{Field: "strategy", Message: fmt.Sprintf("unknown resource version strategy %q", s)}
	}
}

// ExpiryStrategy selects the recovery behaviour after the server
// reports the watched resourceVersion as expired (410 Gone).
type ExpiryStrategy string

const (
	// ExpiryCurrent re-lists the endpoint and resumes from its fresh
	// resourceVersion.
	ExpiryCurrent ExpiryStrategy = "CURRENT"
	// ExpiryNull restarts from the server default.
	ExpiryNull ExpiryStrategy = "NULL"
	// ExpiryZero restarts from "0".
	ExpiryZero ExpiryStrategy = "ZERO"
)

// ParseExpiryStrategy validates a configured expiry strategy name.
// The empty string maps to ExpiryCurrent.
func ParseExpiryStrategy(s string) (ExpiryStrategy, error) {
	switch v := ExpiryStrategy(strings.ToUpper(s)); v {
	case "":
		return ExpiryCurrent, nil
	case ExpiryCurrent, ExpiryNull, ExpiryZero:
		return v, nil
	default:
		return "", &ErrInvalidInput{Field: "expiry strategy", Message: fmt.Sprintf("unknown expiry strategy %q", s)}
	}
}

// Checkpoint is the persisted watch progress of one session. The
// endpoint hash pins the resourceVersion to the target it was
// observed on.
type Checkpoint struct {
	ResourceVersion string    `json:"resourceVersion"`
	EndpointHash    string    `json:"endpointHash"`
	SavedAt         time.Time `json:"savedAt"`
}

// CheckpointStore persists session checkpoints across restarts.
// Implementations live in the infrastructure layer (providers/checkpoint).
type CheckpointStore interface {
	// Load returns the checkpoint of a session, reporting whether one
	// exists.
	Load(session string) (Checkpoint, bool, error)
	// Save replaces the checkpoint of a session.
	Save(session string, cp Checkpoint) error
}

// SelectionInput is the snapshot of session state consulted when
// choosing the resourceVersion for the next connection. Forced is a
// one-shot override armed by expiry recovery; consuming it is the
// caller's responsibility.
type SelectionInput struct {
	Forced       *string
	Latest       string
	Current      string
	Strategy     ResourceVersionStrategy
	Checkpoint   *Checkpoint
	EndpointHash string
}

// SelectResourceVersion picks the resourceVersion for the next watch
// connection, in priority order: forced override, last observed
// version, the version already in use, then the configured initial
// strategy. needList reports that a fresh version must be obtained
// from a limit-1 list of the endpoint before connecting.
func SelectResourceVersion(in SelectionInput) (value string, needList bool) {
	if in.Forced != nil {
		return *in.Forced, false
	}
	if in.Latest != "" {
		return in.Latest, false
	}
	if in.Current != "" {
		return in.Current, false
	}

	switch in.Strategy {
	case StrategyNull:
		return "", false
	case StrategyZero:
		return "0", false
	case StrategyRestoreNull:
		if rv, ok := restore(in.Checkpoint, in.EndpointHash); ok {
			return rv, false
		}
		return "", false
	case StrategyRestoreCurrent:
		if rv, ok := restore(in.Checkpoint, in.EndpointHash); ok {
			return rv, false
		}
		return "", true
	default: // StrategyCurrent
		return "", true
	}
}

// restore yields the checkpointed resourceVersion when the checkpoint
// exists and was taken against the same endpoint.
func restore(cp *Checkpoint, endpointHash string) (string, bool) {
	if cp == nil || cp.ResourceVersion == "" || cp.EndpointHash != endpointHash {
		return "", false
	}
	return cp.ResourceVersion, true
}

// SanitizeResourceVersion forces a value that is neither empty nor a
// non-negative integer back to the server default. Kubernetes treats
// resourceVersions as opaque, but every supported server emits
// uint64 counters; anything else is a misconfiguration.
func SanitizeResourceVersion(v string) string {
	if v == "" {
		return ""
	}
	if _, err := strconv.ParseUint(v, 10, 64); err != nil {
		return ""
	}
	return v
}

// resourceVersionGreater reports whether incoming is numerically
// greater than latest. Non-numeric incoming values never win;
// an empty or non-numeric latest always loses to a numeric incoming
// value.
func resourceVersionGreater(incoming, latest string) bool {
	in, err := strconv.ParseUint(incoming, 10, 64)
	if err != nil {
		return false
	}
	cur, err := strconv.ParseUint(latest, 10, 64)
	if err != nil {
		return true
	}
	return in > cur
}
