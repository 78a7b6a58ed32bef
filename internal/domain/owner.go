package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type OwnerKind string

const (
	OwnerKindRegistered OwnerKind = "registered"
	OwnerKindGuest      OwnerKind = "guest"
)

// GuestMetadataID is written into the processor metadata in place of a user id
// for anonymous checkouts.
const GuestMetadataID = "guest"

// Owner is either a RegisteredOwner or a GuestOwner.
type Owner interface {
	Kind() OwnerKind
	owner()
}

type RegisteredOwner struct {
	UserID string
	Email  string
}

func (RegisteredOwner) Kind() OwnerKind { return OwnerKindRegistered }
func (RegisteredOwner) owner()          {}

type GuestOwner struct {
	Email string
	Name  string
}

func (GuestOwner) Kind() OwnerKind { return OwnerKindGuest }
func (GuestOwner) owner()          {}

// NewGuestOwner picks the first non-empty email and synthesizes a unique
// placeholder when none is known.
func NewGuestOwner(name string, emails ...string) GuestOwner {
	g := GuestOwner{Name: strings.TrimSpace(name)}
	for _, e := range emails {
		if e = strings.TrimSpace(strings.ToLower(e)); e != "" {
			g.Email = e
			break
		}
	}
	if g.Email == "" {
		g.Email = fmt.Sprintf("guest-%s@guest.invalid", uuid.NewString())
	}
	if g.Name == "" {
		g.Name = "Guest"
	}
	return g
}

// MetadataID is the owner identifier carried in the processor metadata blob.
func MetadataID(o Owner) string {
	if r, ok := o.(RegisteredOwner); ok {
		return r.UserID
	}
	return GuestMetadataID
}

func OwnerEmail(o Owner) string {
	switch v := o.(type) {
	case RegisteredOwner:
		return v.Email
	case GuestOwner:
		return v.Email
	}
	return ""
}
