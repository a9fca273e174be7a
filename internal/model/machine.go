package model

import "time"

// Machine is a reservable workshop resource.
type Machine struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Location  string    `gorm:"size:256" json:"location"`
	Lifecycle Lifecycle `gorm:"size:16;not null;default:active;index" json:"lifecycle"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	Requirements []MachineRequirement `gorm:"foreignKey:MachineID" json:"requirements,omitempty"`
}
