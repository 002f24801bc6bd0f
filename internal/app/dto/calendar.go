package dto

import (
	"time"

	"travelbook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

type CalendarDay struct {
	Date   string   `json:"date"`
	Status string   `json:"status"`
	Price  MoneyDTO `json:"price"`
}

type Calendar struct {
	ResourceID string        `json:"resource_id"`
	Days       []CalendarDay `json:"days"`
}

type AvailabilityCheck struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  bool      `json:"available"`
}

type MutationResult struct {
	ResourceID string   `json:"resource_id"`
	Status     string   `json:"status"`
	Dates      []string `json:"dates"`
	Changed    int      `json:"changed"`
}
