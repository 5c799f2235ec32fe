package simpleasset

import (
	"fmt"
	"strings"
)

// ParseAssetStatus converts a stored or user-supplied status string.
func ParseAssetStatus(s string) (AssetStatus, error) {
	switch st := AssetStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case AssetStatusPending, AssetStatusCompleted, AssetStatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// canTransition checks whether an asset may move from one status to another.
// Only PENDING may change; both terminal states are final.
func canTransition(from, to AssetStatus) (bool, error) {
	switch from {
	case AssetStatusPending:
		switch to {
		case AssetStatusCompleted, AssetStatusFailed:
			return true, nil
		case AssetStatusPending:
			return false, fmt.Errorf("%w: asset is already pending", ErrInvalidTransition)
		default:
			return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, to)
		}
	case AssetStatusCompleted, AssetStatusFailed:
		return false, fmt.Errorf("%w: asset is terminal (status: %s)", ErrInvalidTransition, from)
	case "":
		if to == AssetStatusPending {
			return true, nil
		}
		return false, fmt.Errorf("%w: new asset must start pending", ErrInvalidTransition)
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, from)
	}
}

// MarkPending moves a fresh, unsaved asset into PENDING.
func (a *Asset) MarkPending() error {
	if _, err := canTransition(a.Status, AssetStatusPending); err != nil {
		return err
	}
	a.Status = AssetStatusPending
	a.URL = ""
	return nil
}

// MarkCompleted records a successful storage push.
func (a *Asset) MarkCompleted(url string) error {
	if strings.TrimSpace(url) == "" {
		return ErrInvalidStorageResult
	}
	if _, err := canTransition(a.Status, AssetStatusCompleted); err != nil {
		return err
	}
	a.Status = AssetStatusCompleted
	a.URL = url
	return nil
}

// MarkFailed records a permanent storage failure and clears the URL.
func (a *Asset) MarkFailed() error {
	if _, err := canTransition(a.Status, AssetStatusFailed); err != nil {
		return err
	}
	a.Status = AssetStatusFailed
	a.URL = ""
	return nil
}

// Validate checks the invariants a persisted asset must hold.
func (a *Asset) Validate() error {
	switch a.Status {
	case AssetStatusCompleted:
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: completed asset without url", ErrInvalidStatus)
		}
	case AssetStatusPending, AssetStatusFailed:
		if a.URL != "" {
			return fmt.Errorf("%w: %s asset must not carry a url", ErrInvalidStatus, a.Status)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	return nil
}
