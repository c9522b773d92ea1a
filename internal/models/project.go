package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnedBy is the ownership predicate every tree operation is gated on.
func (p *Project) OwnedBy(principal uuid.UUID) bool {
	return p != nil && principal != uuid.Nil && p.OwnerID == principal
}
