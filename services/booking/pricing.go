package booking

import (
	"fmt"
	"sort"
)

// Tariffs maps headset count → rental days → total price. Prices are fixed
// at booking time; later tariff changes never reprice existing bookings.
type Tariffs map[int]map[int]int

// DefaultTariffs is the production price table.
var DefaultTariffs = Tariffs{
	1: {1: 70, 2: 130, 3: 180},
	2: {1: 140, 2: 260, 3: 360},
}

// Price returns the total rental price for the given headset count and
// duration, or an invalidTariff error when the pair is not configured.
func (t Tariffs) Price(units, days int) (int, error) {
	byDays, ok := t[units]
	if !ok {
		return 0, NewError(CodeInvalidTariff, fmt.Sprintf("no tariff configured for %d units", units))
	}
	price, ok := byDays[days]
	if !ok {
		return 0, NewError(CodeInvalidTariff, fmt.Sprintf("no tariff configured for %d units over %d days", units, days))
	}
	return price, nil
}

// SupportsUnits reports whether the table has any tariff for the count.
func (t Tariffs) SupportsUnits(units int) bool {
	_, ok := t[units]
	return ok
}

// SupportsDays reports whether the table has a tariff for the pair.
func (t Tariffs) SupportsDays(units, days int) bool {
	byDays, ok := t[units]
	if !ok {
		return false
	}
	_, ok = byDays[days]
	return ok
}

// Validate checks at startup that every unit count up to capacity has a
// price for every supported duration. A gap here is a configuration error
// and must abort startup, not surface per request.
func (t Tariffs) Validate(capacity int, days []int) error {
	for units := 1; units <= capacity; units++ {
		for _, d := range days {
			if _, err := t.Price(units, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnitChoices lists the bookable headset counts in ascending order,
// capped by fleet capacity.
func (t Tariffs) UnitChoices(capacity int) []int {
	var out []int
	for units := 1; units <= capacity; units++ {
		if t.SupportsUnits(units) {
			out = append(out, units)
		}
	}
	return out
}

// DayChoices lists the supported durations for a unit count in ascending order.
func (t Tariffs) DayChoices(units int) []int {
	var out []int
	for d := range t[units] {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
