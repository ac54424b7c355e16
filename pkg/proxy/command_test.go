package proxy

import (
	"errors"
	"testing"

	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
)

func TestParseCommandVocabulary(t *testing.T) {
	for name := range commandVocabulary {
		if _, err := ParseCommand(string(name), nil); name != CommandChargingLimits && name != CommandCabinPreconditionSet && err != nil {
			t.Errorf("ParseCommand(%q) returned %v", name, err)
		}
	}

	var invalidErr *protocol.InvalidCommandError
	if _, err := ParseCommand("SELF_DESTRUCT", nil); !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidCommandError, got %v", err)
	}
	if _, err := ParseCommand("wake_vehicle", nil); err == nil {
		t.Error("command names are case sensitive")
	}
	if _, err := ParseCommand("", nil); err == nil {
		t.Error("empty command name accepted")
	}
}

func TestParseCommandParameters(t *testing.T) {
	tests := []struct {
		name    string
		command string
		params  RequestParameters
		ok      bool
	}{
		{"charge limit lower bound", "CHARGING_LIMITS", RequestParameters{"SOC_limit": 50.0}, true},
		{"charge limit upper bound", "CHARGING_LIMITS", RequestParameters{"SOC_limit": 100.0}, true},
		{"charge limit too low", "CHARGING_LIMITS", RequestParameters{"SOC_limit": 49.0}, false},
		{"charge limit too high", "CHARGING_LIMITS", RequestParameters{"SOC_limit": 101.0}, false},
		{"charge limit missing", "CHARGING_LIMITS", RequestParameters{}, false},
		{"charge limit wrong type", "CHARGING_LIMITS", RequestParameters{"SOC_limit": "80"}, false},
		{"cabin temp in range", "CABIN_PRECONDITIONING_SET_TEMP", RequestParameters{"HVAC_set_temp": 21.0}, true},
		{"cabin temp LO sentinel", "CABIN_PRECONDITIONING_SET_TEMP", RequestParameters{"HVAC_set_temp": 0.0}, true},
		{"cabin temp HI sentinel", "CABIN_PRECONDITIONING_SET_TEMP", RequestParameters{"HVAC_set_temp": 63.5}, true},
		{"cabin temp too cold", "CABIN_PRECONDITIONING_SET_TEMP", RequestParameters{"HVAC_set_temp": 10.0}, false},
		{"cabin temp too hot", "CABIN_PRECONDITIONING_SET_TEMP", RequestParameters{"HVAC_set_temp": 35.0}, false},
		{"cabin temp missing", "CABIN_PRECONDITIONING_SET_TEMP", nil, false},
		{"unparameterized command ignores params", "WAKE_VEHICLE", RequestParameters{"SOC_limit": 10.0}, true},
	}
	for _, test := range tests {
		_, err := ParseCommand(test.command, test.params)
		if test.ok && err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
		}
		if !test.ok && err == nil {
			t.Errorf("%s: expected an error", test.name)
		}
	}
}

func TestVocabularyIsACopy(t *testing.T) {
	vocabulary := Vocabulary()
	delete(vocabulary, CommandWakeVehicle)
	if _, err := ParseCommand("WAKE_VEHICLE", nil); err != nil {
		t.Error("mutating the returned vocabulary changed command validation")
	}
}
