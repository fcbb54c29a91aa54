package models

import "github.com/noah-isme/student-portal/internal/store"

// Group is a student club. Joined is session state layered on top of the
// document; it is never read from the group record itself.
type Group struct {
	ID      string `doc:"-" json:"id"`
	Name    string `doc:"name" json:"name"`
	Members int    `doc:"members" json:"members" validate:"gte=0"`
	Joined  bool   `doc:"-" json:"joined"`
}

// DecodeGroup builds a Group from a store record.
func DecodeGroup(rec store.Record) (Group, error) {
	var g Group
	if err := decodeRecord(rec, &g); err != nil {
		return Group{}, err
	}
	g.ID = rec.ID
	return g, nil
}

// Membership is the persisted joined flag of one user for one group.
type Membership struct {
	ID     string `doc:"-" json:"id"`
	Joined bool   `doc:"joined" json:"joined"`
}

// FieldJoined is the membership document field holding the flag.
const FieldJoined = "joined"

// MembershipID addresses the membership document of user in group.
func MembershipID(userID, groupName string) string {
	return userID + ":" + groupName
}

// DecodeMembership builds a Membership from a store record.
func DecodeMembership(rec store.Record) (Membership, error) {
	var m Membership
	if err := decodeRecord(rec, &m); err != nil {
		return Membership{}, err
	}
	m.ID = rec.ID
	return m, nil
}
