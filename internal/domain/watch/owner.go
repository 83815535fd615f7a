package watch

import (
	"strconv"

	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

// SharedKey is the reserved owner key for the panel every operator shares.
// It is never subject to idle eviction.
const SharedKey = "shared"

// OwnerRef identifies who owns a watch-list: an individual user or the
// shared panel. The zero value is not valid; construct via UserOwner or
// SharedOwner.
type OwnerRef struct {
	shared bool
	userID int64
}

// SharedOwner returns the reference for the shared panel.
func SharedOwner() OwnerRef {
	return OwnerRef{shared: true}
}

// UserOwner returns the reference for an individual user's panel.
func UserOwner(id int64) OwnerRef {
	return OwnerRef{userID: id}
}

// Shared reports whether the reference points at the shared panel.
func (o OwnerRef) Shared() bool {
	return o.shared
}

// UserID returns the user identifier; it is 0 for the shared panel.
func (o OwnerRef) UserID() int64 {
	return o.userID
}

// Key returns the stable string key the reference is stored under.
func (o OwnerRef) Key() string {
	if o.shared {
		return SharedKey
	}
	return strconv.FormatInt(o.userID, 10)
}

func (o OwnerRef) String() string {
	return o.Key()
}

// ParseOwnerKey converts a stored owner key back into an OwnerRef.
func ParseOwnerKey(key string) (OwnerRef, error) {
	if key == SharedKey {
		return SharedOwner(), nil
	}
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 {
		return OwnerRef{}, sharedErrors.ErrInvalidOwnerKey
	}
	return UserOwner(id), nil
}
