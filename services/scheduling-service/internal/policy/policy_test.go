package policy

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		pol  Policy
		ok   bool
	}{
		{"default", Default(), true},
		{"no lunch", Policy{OpenHour: 9, CloseHour: 17, SlotMinutes: 30}, true},
		{"open after close", Policy{OpenHour: 18, CloseHour: 8, SlotMinutes: 60}, false},
		{"open equals close", Policy{OpenHour: 8, CloseHour: 8, SlotMinutes: 60}, false},
		{"negative open", Policy{OpenHour: -1, CloseHour: 8, SlotMinutes: 60}, false},
		{"close past midnight", Policy{OpenHour: 8, CloseHour: 25, SlotMinutes: 60}, false},
		{"lunch inverted", Policy{OpenHour: 8, CloseHour: 18, Lunch: &LunchBreak{StartHour: 13, EndHour: 12}, SlotMinutes: 60}, false},
		{"lunch before open", Policy{OpenHour: 8, CloseHour: 18, Lunch: &LunchBreak{StartHour: 7, EndHour: 9}, SlotMinutes: 60}, false},
		{"lunch after close", Policy{OpenHour: 8, CloseHour: 18, Lunch: &LunchBreak{StartHour: 17, EndHour: 19}, SlotMinutes: 60}, false},
		{"lunch at edges", Policy{OpenHour: 8, CloseHour: 18, Lunch: &LunchBreak{StartHour: 8, EndHour: 18}, SlotMinutes: 60}, true},
		{"zero slot minutes", Policy{OpenHour: 8, CloseHour: 18, SlotMinutes: 0}, false},
		{"odd slot minutes", Policy{OpenHour: 8, CloseHour: 18, SlotMinutes: 45}, false},
		{"bad timezone", Policy{OpenHour: 8, CloseHour: 18, SlotMinutes: 60, Timezone: "Mars/Olympus"}, false},
	}

	for _, c := range cases {
		err := c.pol.Validate()
		if c.ok && err != nil {
			t.Fatalf("%s: expected valid, got %v", c.name, err)
		}
		if !c.ok {
			if err == nil {
				t.Fatalf("%s: expected validation error", c.name)
			}
			var ice *InvalidConfigurationError
			if !errors.As(err, &ice) {
				t.Fatalf("%s: expected InvalidConfigurationError, got %T", c.name, err)
			}
		}
	}
}

func TestLocation(t *testing.T) {
	loc := Default().Location()
	if loc.String() != "America/Sao_Paulo" {
		t.Fatalf("expected America/Sao_Paulo, got %s", loc)
	}
	if (Policy{}).Location().String() != "UTC" {
		t.Fatal("empty timezone should fall back to UTC")
	}
}
