package proxy

import (
	"fmt"

	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
)

// Command identifies a remote-control instruction in the closed vocabulary the cloud service
// accepts. The gateway may grow new commands over time; unrecognized names are rejected locally
// before any network traffic is generated.
type Command string

const (
	CommandWakeVehicle          Command = "WAKE_VEHICLE"
	CommandHonkAndFlashLights   Command = "HONK_AND_FLASH_LIGHTS"
	CommandOpenFrunk            Command = "OPEN_FRUNK"
	CommandCloseFrunk           Command = "CLOSE_FRUNK"
	CommandOpenAllWindows       Command = "OPEN_ALL_WINDOWS"
	CommandCloseAllWindows      Command = "CLOSE_ALL_WINDOWS"
	CommandUnlockAllClosures    Command = "UNLOCK_ALL_CLOSURES"
	CommandLockAllClosures      Command = "LOCK_ALL_CLOSURES"
	CommandOpenTonneauCover     Command = "OPEN_TONNEAU_COVER"
	CommandCloseTonneauCover    Command = "CLOSE_TONNEAU_COVER"
	CommandStartCharging        Command = "START_CHARGING"
	CommandStopCharging         Command = "STOP_CHARGING"
	CommandChargingLimits       Command = "CHARGING_LIMITS"
	CommandCabinPreconditionSet Command = "CABIN_PRECONDITIONING_SET_TEMP"
	CommandCabinDefrostDefog    Command = "CABIN_HVAC_DEFROST_DEFOG"
	CommandEnableGearGuard      Command = "ENABLE_GEAR_GUARD_VIDEO"
	CommandDisableGearGuard     Command = "DISABLE_GEAR_GUARD_VIDEO"
	CommandPanicOn              Command = "PANIC_ON"
	CommandPanicOff             Command = "PANIC_OFF"
)

// CommandInfo documents one vocabulary entry for the command discovery endpoint.
type CommandInfo struct {
	Description string            `json:"description"`
	Params      map[string]string `json:"params"`
}

var commandVocabulary = map[Command]CommandInfo{
	CommandWakeVehicle:          {Description: "Wake up the vehicle", Params: map[string]string{}},
	CommandHonkAndFlashLights:   {Description: "Honk and flash lights", Params: map[string]string{}},
	CommandOpenFrunk:            {Description: "Open the front trunk", Params: map[string]string{}},
	CommandCloseFrunk:           {Description: "Close the front trunk", Params: map[string]string{}},
	CommandOpenAllWindows:       {Description: "Open all windows", Params: map[string]string{}},
	CommandCloseAllWindows:      {Description: "Close all windows", Params: map[string]string{}},
	CommandUnlockAllClosures:    {Description: "Unlock all doors and closures", Params: map[string]string{}},
	CommandLockAllClosures:      {Description: "Lock all doors and closures", Params: map[string]string{}},
	CommandOpenTonneauCover:     {Description: "Open the tonneau cover", Params: map[string]string{}},
	CommandCloseTonneauCover:    {Description: "Close the tonneau cover", Params: map[string]string{}},
	CommandStartCharging:        {Description: "Start charging", Params: map[string]string{}},
	CommandStopCharging:         {Description: "Stop charging", Params: map[string]string{}},
	CommandChargingLimits:       {Description: "Set charging limit", Params: map[string]string{"SOC_limit": "50-100 (percentage)"}},
	CommandCabinPreconditionSet: {Description: "Precondition the cabin to a target temperature", Params: map[string]string{"HVAC_set_temp": "16-29 (degrees Celsius), 0 for LO, 63.5 for HI"}},
	CommandCabinDefrostDefog:    {Description: "Start defrost/defog", Params: map[string]string{}},
	CommandEnableGearGuard:      {Description: "Enable Gear Guard video", Params: map[string]string{}},
	CommandDisableGearGuard:     {Description: "Disable Gear Guard video", Params: map[string]string{}},
	CommandPanicOn:              {Description: "Activate the panic alarm", Params: map[string]string{}},
	CommandPanicOff:             {Description: "Deactivate the panic alarm", Params: map[string]string{}},
}

// Vocabulary returns the recognized command set with per-command parameter documentation.
func Vocabulary() map[Command]CommandInfo {
	vocabulary := make(map[Command]CommandInfo, len(commandVocabulary))
	for command, info := range commandVocabulary {
		vocabulary[command] = info
	}
	return vocabulary
}

// RequestParameters holds the free-form parameter object attached to a command request.
type RequestParameters map[string]interface{}

func missingParamError(key string) error {
	return &requestError{message: fmt.Sprintf("missing %s param", key)}
}

func invalidParamError(key string) error {
	return &requestError{message: fmt.Sprintf("invalid %s param", key)}
}

func (p RequestParameters) getNumber(key string, required bool) (float64, error) {
	if value, ok := p[key]; ok {
		if n, ok := value.(float64); ok {
			return n, nil
		}
		return 0, invalidParamError(key)
	} else if !required {
		return 0, nil
	}
	return 0, missingParamError(key)
}

// ParseCommand validates name against the vocabulary and the attached parameters against the
// command's contract. The check happens before any network call.
func ParseCommand(name string, params RequestParameters) (Command, error) {
	command := Command(name)
	if _, ok := commandVocabulary[command]; !ok {
		return "", &protocol.InvalidCommandError{Name: name}
	}

	switch command {
	case CommandChargingLimits:
		limit, err := params.getNumber("SOC_limit", true)
		if err != nil {
			return "", err
		}
		if limit < 50 || limit > 100 {
			return "", invalidParamError("SOC_limit")
		}
	case CommandCabinPreconditionSet:
		temp, err := params.getNumber("HVAC_set_temp", true)
		if err != nil {
			return "", err
		}
		// 0 and 63.5 are the vendor's sentinel values for LO and HI.
		if temp != 0 && temp != 63.5 && (temp < 16 || temp > 29) {
			return "", invalidParamError("HVAC_set_temp")
		}
	}
	return command, nil
}
