package domain

import (
	"fmt"
	"time"
)

type Spot struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	Code       string    `json:"code" gorm:"size:8;uniqueIndex;not null"`
	Row        string    `json:"row" gorm:"column:row_letter;size:4;not null;index:idx_spots_row_number"`
	Number     int       `json:"number" gorm:"not null;index:idx_spots_row_number"`
	HasCharger bool      `json:"has_charger" gorm:"not null;index"`
	Active     bool      `json:"active" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SpotCode formats a row letter and a number as "A01".
func SpotCode(row string, number int) string {
	return fmt.Sprintf("%s%02d", row, number)
}

// SpotFilter narrows catalog listings. Nil fields are not applied.
type SpotFilter struct {
	Row        *string
	HasCharger *bool
	Active     *bool
}
