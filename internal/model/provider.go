package model

import "time"

type Provider struct {
	ID                int64     `db:"id"`
	Name              string    `db:"name"`
	Email             string    `db:"email"`
	Verified          bool      `db:"is_verified"`
	SettlementAccount *string   `db:"settlement_account_id"` // processor account id, nullable
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (p Provider) HasSettlementAccount() bool {
	return p.SettlementAccount != nil && *p.SettlementAccount != ""
}
