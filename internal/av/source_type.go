package av

import (
	"fmt"
	"strings"
)

// SourceType classifies a source by the kind of device behind it.
type SourceType int

// Source types. The string forms (see String) are what the catalog stores
// and what the API returns.
const (
	SourceTypeUnknown SourceType = iota
	SourceTypePC
	SourceTypeLaptop
	SourceTypeMac
	SourceTypeTablet
	SourceTypePhoneDocking
	SourceTypeDocumentCamera
	SourceTypeCamera
	SourceTypeWhiteboard
	SourceTypeLectern
	SourceTypeHDMIInput
	SourceTypeVGAInput
	SourceTypeUSBCInput
	SourceTypeAirMedia
	SourceTypeClickShare
	SourceTypeSolstice
	SourceTypeMiracast
	SourceTypeWirelessPresentation
	SourceTypeAppleTV
	SourceTypeChromecast
	SourceTypeDVD
	SourceTypeBluRay
	SourceTypeVCR
	SourceTypeTV
	SourceTypeIPTV
	SourceTypeSatellite
	SourceTypeCableTV
	SourceTypeFreeview
	SourceTypeTuner
	SourceTypeDAB
	SourceTypeFMRadio
	SourceTypeInternetRadio
	SourceTypeMediaPlayer
	SourceTypeMusicServer
	SourceTypeSpotify
	SourceTypeAirPlay
	SourceTypeBluetooth
	SourceTypeSonos
	SourceTypeStreamer
	SourceTypeGamingConsole
	SourceTypeDigitalSignage
	SourceTypeVideoConference
	SourceTypeAudioConference
	SourceTypeTeams
	SourceTypeZoom
	SourceTypeWebex
	SourceTypeSoftCodec
	SourceTypePhone
	SourceTypeMicrophone
	SourceTypeAudioInput
	SourceTypeCCTV
	SourceTypeKiosk
	SourceTypeAuxiliary
)

var sourceTypeNames = [...]string{
	SourceTypeUnknown:              "unknown",
	SourceTypePC:                   "pc",
	SourceTypeLaptop:               "laptop",
	SourceTypeMac:                  "mac",
	SourceTypeTablet:               "tablet",
	SourceTypePhoneDocking:         "phone_docking",
	SourceTypeDocumentCamera:       "document_camera",
	SourceTypeCamera:               "camera",
	SourceTypeWhiteboard:           "whiteboard",
	SourceTypeLectern:              "lectern",
	SourceTypeHDMIInput:            "hdmi_input",
	SourceTypeVGAInput:             "vga_input",
	SourceTypeUSBCInput:            "usbc_input",
	SourceTypeAirMedia:             "airmedia",
	SourceTypeClickShare:           "clickshare",
	SourceTypeSolstice:             "solstice",
	SourceTypeMiracast:             "miracast",
	SourceTypeWirelessPresentation: "wireless_presentation",
	SourceTypeAppleTV:              "apple_tv",
	SourceTypeChromecast:           "chromecast",
	SourceTypeDVD:                  "dvd",
	SourceTypeBluRay:               "bluray",
	SourceTypeVCR:                  "vcr",
	SourceTypeTV:                   "tv",
	SourceTypeIPTV:                 "iptv",
	SourceTypeSatellite:            "satellite",
	SourceTypeCableTV:              "cable_tv",
	SourceTypeFreeview:             "freeview",
	SourceTypeTuner:                "tuner",
	SourceTypeDAB:                  "dab",
	SourceTypeFMRadio:              "fm_radio",
	SourceTypeInternetRadio:        "internet_radio",
	SourceTypeMediaPlayer:          "media_player",
	SourceTypeMusicServer:          "music_server",
	SourceTypeSpotify:              "spotify",
	SourceTypeAirPlay:              "airplay",
	SourceTypeBluetooth:            "bluetooth",
	SourceTypeSonos:                "sonos",
	SourceTypeStreamer:             "streamer",
	SourceTypeGamingConsole:        "gaming_console",
	SourceTypeDigitalSignage:       "digital_signage",
	SourceTypeVideoConference:      "video_conference",
	SourceTypeAudioConference:      "audio_conference",
	SourceTypeTeams:                "teams",
	SourceTypeZoom:                 "zoom",
	SourceTypeWebex:                "webex",
	SourceTypeSoftCodec:            "soft_codec",
	SourceTypePhone:                "phone",
	SourceTypeMicrophone:           "microphone",
	SourceTypeAudioInput:           "audio_input",
	SourceTypeCCTV:                 "cctv",
	SourceTypeKiosk:                "kiosk",
	SourceTypeAuxiliary:            "auxiliary",
}

// Classification tables. Membership is fixed; a type may appear in more
// than one table (an Apple TV is both media and wireless presentation).
var (
	presentationTypes = typeSet(
		SourceTypePC,
		SourceTypeLaptop,
		SourceTypeMac,
		SourceTypeTablet,
		SourceTypePhoneDocking,
		SourceTypeDocumentCamera,
		SourceTypeWhiteboard,
		SourceTypeLectern,
		SourceTypeHDMIInput,
		SourceTypeVGAInput,
		SourceTypeUSBCInput,
		SourceTypeAirMedia,
		SourceTypeClickShare,
		SourceTypeSolstice,
		SourceTypeMiracast,
		SourceTypeWirelessPresentation,
	)

	wirelessPresentationTypes = typeSet(
		SourceTypeAirMedia,
		SourceTypeClickShare,
		SourceTypeSolstice,
		SourceTypeMiracast,
		SourceTypeWirelessPresentation,
		SourceTypeAppleTV,
		SourceTypeChromecast,
	)

	mediaTypes = typeSet(
		SourceTypeAppleTV,
		SourceTypeChromecast,
		SourceTypeDVD,
		SourceTypeBluRay,
		SourceTypeVCR,
		SourceTypeTV,
		SourceTypeIPTV,
		SourceTypeSatellite,
		SourceTypeCableTV,
		SourceTypeFreeview,
		SourceTypeTuner,
		SourceTypeDAB,
		SourceTypeFMRadio,
		SourceTypeInternetRadio,
		SourceTypeMediaPlayer,
		SourceTypeMusicServer,
		SourceTypeSpotify,
		SourceTypeAirPlay,
		SourceTypeBluetooth,
		SourceTypeSonos,
		SourceTypeStreamer,
		SourceTypeGamingConsole,
		SourceTypeDigitalSignage,
	)

	conferenceTypes = typeSet(
		SourceTypeVideoConference,
		SourceTypeAudioConference,
		SourceTypeTeams,
		SourceTypeZoom,
		SourceTypeWebex,
		SourceTypeSoftCodec,
		SourceTypePhone,
	)
)

func typeSet(types ...SourceType) map[SourceType]struct{} {
	m := make(map[SourceType]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	return m
}

// String returns the catalog name of the type, e.g. "document_camera".
func (t SourceType) String() string {
	if t < 0 || int(t) >= len(sourceTypeNames) {
		return fmt.Sprintf("source_type(%d)", int(t))
	}
	return sourceTypeNames[t]
}

// ParseSourceType converts a catalog name back into a SourceType.
// Matching ignores case and surrounding whitespace.
func ParseSourceType(s string) (SourceType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range sourceTypeNames {
		if name == s {
			return SourceType(i), nil
		}
	}
	return SourceTypeUnknown, fmt.Errorf("%w: unknown source type %q", ErrInvalidArgument, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t SourceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SourceType) UnmarshalText(b []byte) error {
	parsed, err := ParseSourceType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsPresentation reports whether the type is a presentation input.
func (t SourceType) IsPresentation() bool {
	_, ok := presentationTypes[t]
	return ok
}

// IsWirelessPresentation reports whether the type is a wireless presentation gateway.
func (t SourceType) IsWirelessPresentation() bool {
	_, ok := wirelessPresentationTypes[t]
	return ok
}

// IsMedia reports whether the type is a media/entertainment source.
func (t SourceType) IsMedia() bool {
	_, ok := mediaTypes[t]
	return ok
}

// IsConference reports whether the type is a conferencing endpoint.
func (t SourceType) IsConference() bool {
	_, ok := conferenceTypes[t]
	return ok
}

// SourceTypes returns every defined source type in declaration order.
func SourceTypes() []SourceType {
	types := make([]SourceType, len(sourceTypeNames))
	for i := range sourceTypeNames {
		types[i] = SourceType(i)
	}
	return types
}
