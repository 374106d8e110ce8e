package domain

import (
	"time"
)

// PaymentStatus represents the status of a settled payment.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Card is a prepaid balance holder. One card may own several IdTags
// (e.g. a physical RFID card plus an app-issued virtual tag).
type Card struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	BalanceNT float64   `json:"balance_nt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdTagStatus is the authorization state carried by an IdTag, reported
// verbatim in the idTagInfo.status of Authorize.conf and StartTransaction.conf.
type IdTagStatus string

const (
	IdTagStatusAccepted IdTagStatus = "Accepted"
	IdTagStatusBlocked  IdTagStatus = "Blocked"
	IdTagStatusExpired  IdTagStatus = "Expired"
	IdTagStatusInvalid  IdTagStatus = "Invalid"
)

// IdTag is the RFID/authorization token presented in Authorize.req and
// StartTransaction.req, resolved to its owning Card for balance checks.
// Status and ExpiryDate are evaluated independently of the whitelist: a
// card may be whitelisted at a charge point yet carry a Blocked or
// Expired id-tag, and vice versa.
type IdTag struct {
	IdTag      string      `json:"id_tag" gorm:"primaryKey"`
	CardID     string      `json:"card_id" gorm:"index"`
	Status     IdTagStatus `json:"status"`
	ExpiryDate *time.Time  `json:"expiry_date,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Resolve returns the authorization status to report for this tag at t,
// applying the expiry check on top of the stored Status.
func (t *IdTag) Resolve(now time.Time) IdTagStatus {
	if t.Status != IdTagStatusAccepted {
		if t.Status == "" {
			return IdTagStatusInvalid
		}
		return t.Status
	}
	if t.ExpiryDate != nil && !t.ExpiryDate.IsZero() && now.After(*t.ExpiryDate) {
		return IdTagStatusExpired
	}
	return IdTagStatusAccepted
}

// CardWhitelistEntry restricts a card to a set of charge points. An empty
// whitelist table means every card is allowed at every charge point.
type CardWhitelistEntry struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	CardID        string `json:"card_id" gorm:"index"`
	ChargePointID string `json:"charge_point_id" gorm:"index"`
}

// Payment is a ledger row posted once per settled transaction (the final
// debit); streaming increments during an active session are tracked by
// RealtimeDeduction, not by Payment rows.
type Payment struct {
	ID            string        `json:"id" gorm:"primaryKey"`
	CardID        string        `json:"card_id" gorm:"index"`
	TransactionID int64         `json:"transaction_id" gorm:"index"`
	Amount        float64       `json:"amount"`
	BalanceAfter  float64       `json:"balance_after"`
	Status        PaymentStatus `json:"status"`
	Description   string        `json:"description"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RealtimeDeduction is the idempotence cursor for incremental prepaid
// billing: it records the cost-so-far already debited for a still-active
// transaction so the next MeterValues only charges the delta.
type RealtimeDeduction struct {
	TransactionID int64     `json:"transaction_id" gorm:"primaryKey"`
	CardID        string    `json:"card_id"`
	DeductedSoFar float64   `json:"deducted_so_far"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TariffSegment is one priced interval filed under a calendar date. Start/
// End are "HH:MM" wall-clock strings in the configured region timezone;
// Start > End denotes a segment crossing midnight, filed under the date it
// starts on. Date is "YYYY-MM-DD"; overlapping segments on the same date
// resolve to the highest price.
type TariffSegment struct {
	ID      uint    `json:"id" gorm:"primaryKey"`
	Date    string  `json:"date" gorm:"index"` // "YYYY-MM-DD"
	Start   string  `json:"start"`
	End     string  `json:"end"`
	PriceNT float64 `json:"price_nt"` // NT$ per kWh
}
