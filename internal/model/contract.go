package model

import "time"

type Contract struct {
	CreatorID int64      `json:"creator_id"`
	SignedAt  *time.Time `json:"signed_at"`
}

// Signed статус договора выводится из наличия даты подписи
func (c *Contract) Signed() bool {
	return c != nil && c.SignedAt != nil
}
