package model

import "time"

// CheckoutAvailabilityBlock is a one-off window a manager offers for checkout
// appraisals on a machine.
type CheckoutAvailabilityBlock struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	MachineID int64     `gorm:"not null;index" json:"machineId"`
	ManagerID int64     `gorm:"not null;index:idx_block_manager_period" json:"managerId"`
	StartTime time.Time `gorm:"not null;index:idx_block_manager_period" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`
	Lifecycle Lifecycle `gorm:"size:16;not null;default:active" json:"lifecycle"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CheckoutAvailabilityRule is a recurring weekly window in the rule's timezone.
// It never crosses midnight.
type CheckoutAvailabilityRule struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	ManagerID        int64     `gorm:"not null;index" json:"managerId"`
	DayOfWeek        int       `gorm:"not null" json:"dayOfWeek"`
	StartMinuteOfDay int       `gorm:"not null" json:"startMinuteOfDay"`
	EndMinuteOfDay   int       `gorm:"not null" json:"endMinuteOfDay"`
	Timezone         string    `gorm:"size:64;not null" json:"timezone"`
	Lifecycle        Lifecycle `gorm:"size:16;not null;default:active" json:"lifecycle"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// AppointmentStatus is the state of a checkout appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentCancelled || s == AppointmentCompleted
}

// CheckoutAppointment is a booked appraisal derived from a block or a rule occurrence.
type CheckoutAppointment struct {
	ID           int64             `gorm:"primaryKey" json:"id"`
	UserID       int64             `gorm:"not null;index" json:"userId"`
	MachineID    int64             `gorm:"not null;index" json:"machineId"`
	ManagerID    int64             `gorm:"not null;index:idx_appointment_manager_period" json:"managerId"`
	BlockID      *int64            `gorm:"index" json:"blockId,omitempty"`
	RuleID       *int64            `gorm:"index" json:"ruleId,omitempty"`
	StartTime    time.Time         `gorm:"not null;index:idx_appointment_manager_period" json:"startTime"`
	EndTime      time.Time         `gorm:"not null" json:"endTime"`
	Status       AppointmentStatus `gorm:"size:16;not null;index" json:"status"`
	CancelReason string            `gorm:"size:1024" json:"cancelReason,omitempty"`
	CancelledBy  *int64            `json:"cancelledBy,omitempty"`
	// Legacy calendar sync identifier, stored and returned untouched.
	CalendarEventID string    `gorm:"size:256" json:"calendarEventId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
