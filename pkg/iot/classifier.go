package iot

import "liyu1981.xyz/device-events-service/pkg/models"

const UnknownEventName = "UNKNOWN_EVENT"

var eventTypeNames = map[models.EventType]string{
	1:  "LOCATION",
	2:  "GUEST_REGISTRATION",
	3:  "MEMBER_GUEST_DECLARATION",
	4:  "CONFIGURATION",
	5:  "TAMPER_ALARM",
	6:  "SOS_ALARM",
	7:  "BATTERY_ALARM",
	8:  "METER_INSTALLATION",
	9:  "VOLTAGE_STATS",
	10: "TEMPERATURE_STATS",
	11: "NTP_SYNC",
	12: "AUDIENCE_SESSION_CLOSE",
	13: "NETWORK_LATCH",
	14: "REMOTE_PAIRING",
	15: "REMOTE_ACTIVITY",
	16: "SIM_ALERT",
	17: "SYSTEM_ALARM",
	18: "SYSTEM_INFO",
	19: "CONFIG_UPDATE",
	20: "ALIVE",
	21: "METER_OTA",
	22: "BATTERY_VOLTAGE",
	23: "BOOT",
	24: "BOOT_V2",
	25: "STB",
	26: "DERIVED_TV_STATUS",
	27: "AUDIO_SOURCE",
	28: "AUDIO_FINGERPRINT",
	29: "LOGO_DETECTED",
}

// tamper, sos, battery, sim, system
var alertEventTypes = map[models.EventType]struct{}{
	5:  {},
	6:  {},
	7:  {},
	16: {},
	17: {},
}

func EventName(t models.EventType) string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return UnknownEventName
}

func IsAlertType(t models.EventType) bool {
	_, ok := alertEventTypes[t]
	return ok
}

func Classify(t models.EventType) (string, bool) {
	return EventName(t), IsAlertType(t)
}
