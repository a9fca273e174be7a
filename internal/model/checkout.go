package model

import "time"

// ManagerCheckout records that a manager appraised a user on a machine.
// Existence of the row is the approval.
type ManagerCheckout struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"not null;uniqueIndex:idx_checkout_user_machine" json:"userId"`
	MachineID  int64     `gorm:"not null;uniqueIndex:idx_checkout_user_machine" json:"machineId"`
	ApprovedBy int64     `gorm:"not null" json:"approvedBy"`
	ApprovedAt time.Time `gorm:"not null" json:"approvedAt"`
}
