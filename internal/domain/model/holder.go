package model

import "time"

// RestoredAddress is the placeholder address given to holders restored from backup.
const RestoredAddress = "restored"

// VerificationAttempt is an in-flight ownership challenge for one identity.
type VerificationAttempt struct {
	Identity  string
	GuildID   string
	Address   string
	Challenge Amount
	CreatedAt time.Time
}

// ExpiresAt is the instant from which the attempt is no longer polled.
func (a VerificationAttempt) ExpiresAt(timeout time.Duration) time.Time {
	return a.CreatedAt.Add(timeout)
}

// VerifiedHolder is an identity that proved control of Address.
// AssignedRoleIDs holds the roles this system believes it granted; it is
// written only by the reconciler. RestoredRoleNames are names as seen in
// RestoredGuildID and mean nothing in any other guild.
type VerifiedHolder struct {
	Identity          string
	Address           string
	AssignedRoleIDs   map[string]struct{}
	RestoredGuildID   string
	RestoredRoleNames []string
	VerifiedAt        time.Time
	LastReconciledAt  time.Time
}

// NewVerifiedHolder returns a holder with an empty assigned role set.
func NewVerifiedHolder(identity, address string, now time.Time) VerifiedHolder {
	return VerifiedHolder{
		Identity:        identity,
		Address:         address,
		AssignedRoleIDs: make(map[string]struct{}),
		VerifiedAt:      now,
	}
}

// IsRestored reports whether the holder came from a backup and has no real address.
func (h *VerifiedHolder) IsRestored() bool {
	return h.Address == RestoredAddress
}

// Clone returns a deep copy safe to hand out of a store.
func (h *VerifiedHolder) Clone() VerifiedHolder {
	out := *h
	out.AssignedRoleIDs = make(map[string]struct{}, len(h.AssignedRoleIDs))
	for id := range h.AssignedRoleIDs {
		out.AssignedRoleIDs[id] = struct{}{}
	}
	out.RestoredRoleNames = append([]string(nil), h.RestoredRoleNames...)
	return out
}
