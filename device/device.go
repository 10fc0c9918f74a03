// Package device maps Bedrock platform identifiers between the forms the
// protocol, the config file and the Xbox Live presence service use.
package device

import "github.com/sandertv/gophertunnel/minecraft/protocol"

var names = map[protocol.DeviceOS]string{
	protocol.DeviceAndroid:   "Android",
	protocol.DeviceIOS:       "iOS",
	protocol.DeviceOSX:       "macOS",
	protocol.DeviceFireOS:    "Fire OS",
	protocol.DeviceGearVR:    "Gear VR",
	protocol.DeviceHololens:  "Hololens",
	protocol.DeviceWin10:     "Windows 10",
	protocol.DeviceWin32:     "Win32",
	protocol.DeviceDedicated: "Dedicated",
	protocol.DeviceTVOS:      "tvOS",
	protocol.DeviceOrbis:     "PlayStation",
	protocol.DeviceNX:        "Nintendo Switch",
	protocol.DeviceXBOX:      "Xbox",
	protocol.DeviceWP:        "Windows Phone",
}

// Name returns a readable name for the given device OS.
func Name(os protocol.DeviceOS) string {
	if n, ok := names[os]; ok {
		return n
	}
	return "Unknown"
}

// presenceTypes maps a device OS to the device type strings the Xbox Live
// presence service reports for sessions on that platform.
var presenceTypes = map[protocol.DeviceOS][]string{
	protocol.DeviceAndroid: {"Android", "AndroidPhone", "AndroidTablet"},
	protocol.DeviceIOS:     {"iOS", "iPhone", "iPad"},
	protocol.DeviceOSX:     {"Mac"},
	protocol.DeviceFireOS:  {"Android", "AndroidTablet"},
	protocol.DeviceWin10:   {"PC", "Win32", "WindowsOneCore"},
	protocol.DeviceWin32:   {"PC", "Win32", "WindowsOneCore"},
	protocol.DeviceOrbis:   {"PlayStation", "PlayStation5", "PlayStation4"},
	protocol.DeviceNX:      {"Nintendo", "Switch"},
	protocol.DeviceXBOX:    {"XboxOne", "Scarlett", "Xbox360"},
}

// PresenceMatches reports whether a presence device type string is
// consistent with the claimed device OS.
func PresenceMatches(os protocol.DeviceOS, deviceType string) bool {
	for _, t := range presenceTypes[os] {
		if t == deviceType {
			return true
		}
	}
	return false
}

// ParseName resolves a readable device name back to its OS constant. It is
// used for the banned-device list in the config, which holds names rather
// than protocol constants. The second return value is false for names that
// match no known platform.
func ParseName(name string) (protocol.DeviceOS, bool) {
	for os, n := range names {
		if n == name {
			return os, true
		}
	}
	return 0, false
}
