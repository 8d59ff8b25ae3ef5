package models

import "time"

// AnonymousID is the sentinel principal the host reports when nobody is
// signed in.
const AnonymousID = "2vxsx-fae"

// IdentityInfo is the payload of the identity command and the IdentityChanged
// event. Expiration is milliseconds since epoch, nil when the session does not
// expire.
type IdentityInfo struct {
	ID         string `json:"id"`
	Expiration *int64 `json:"expiration"`
}

// Anonymous returns the unauthenticated identity.
func Anonymous() IdentityInfo {
	return IdentityInfo{ID: AnonymousID}
}

func (i IdentityInfo) IsAnonymous() bool {
	return i.ID == AnonymousID || i.ID == ""
}

// IsAuthenticated reports a non-anonymous identity whose session has not
// expired.
func (i IdentityInfo) IsAuthenticated() bool {
	if i.IsAnonymous() {
		return false
	}
	return i.Expiration == nil || *i.Expiration > time.Now().UnixMilli()
}

// UserInfo is the user profile snapshot fetched via get_user and cached
// locally per user id.
type UserInfo struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Image           string  `json:"image,omitempty"`
	ProfileCanister string  `json:"profile_canister,omitempty"`
	CoseCanister    *string `json:"cose_canister,omitempty"`
	Username        *string `json:"username,omitempty"`
}
