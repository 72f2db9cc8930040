package booking

import "testing"

func TestTariffsPrice(t *testing.T) {
	cases := []struct {
		name  string
		units int
		days  int
		want  int
		ok    bool
	}{
		{"one unit one day", 1, 1, 70, true},
		{"one unit two days", 1, 2, 130, true},
		{"one unit three days", 1, 3, 180, true},
		{"two units one day", 2, 1, 140, true},
		{"two units two days", 2, 2, 260, true},
		{"two units three days", 2, 3, 360, true},
		{"unknown units", 3, 1, 0, false},
		{"unknown days", 1, 4, 0, false},
		{"zero units", 0, 1, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DefaultTariffs.Price(tc.units, tc.days)
			if tc.ok {
				if err != nil {
					t.Fatalf("Price(%d, %d) returned error: %v", tc.units, tc.days, err)
				}
				if got != tc.want {
					t.Fatalf("Price(%d, %d) = %d, want %d", tc.units, tc.days, got, tc.want)
				}
				return
			}
			if !HasCode(err, CodeInvalidTariff) {
				t.Fatalf("Price(%d, %d) error = %v, want invalidTariff", tc.units, tc.days, err)
			}
		})
	}
}

func TestTariffsValidate(t *testing.T) {
	if err := DefaultTariffs.Validate(2, []int{1, 2, 3}); err != nil {
		t.Fatalf("default tariffs should cover a fleet of 2: %v", err)
	}
	if err := DefaultTariffs.Validate(3, []int{1, 2, 3}); !HasCode(err, CodeInvalidTariff) {
		t.Fatalf("expected invalidTariff for uncovered fleet size, got %v", err)
	}
}

func TestTariffsChoices(t *testing.T) {
	units := DefaultTariffs.UnitChoices(2)
	if len(units) != 2 || units[0] != 1 || units[1] != 2 {
		t.Fatalf("UnitChoices(2) = %v, want [1 2]", units)
	}
	// Capacity caps the offer even when a tariff exists.
	units = DefaultTariffs.UnitChoices(1)
	if len(units) != 1 || units[0] != 1 {
		t.Fatalf("UnitChoices(1) = %v, want [1]", units)
	}

	days := DefaultTariffs.DayChoices(2)
	if len(days) != 3 || days[0] != 1 || days[2] != 3 {
		t.Fatalf("DayChoices(2) = %v, want [1 2 3]", days)
	}
}
