// Package sink implements the device-owning consumer stage: device
// enumeration, exclusive/shared format negotiation, a ring-buffer write
// path driven by a portaudio output callback, and 10 Hz status emission.
// Portaudio usage (Initialize/DefaultHostApi/OpenStream/Start/Close) is
// grounded on audio/microphone.go's input-side use of the same API,
// adapted here from a producer callback to a consumer callback.
package sink

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// Device describes one enumerable audio output device.
type Device struct {
	ID                   int
	HumanName            string
	APITag               string
	SupportedSampleRates []int
	SupportedBitDepths   []int
	ChannelCounts        []int
	IsDefault            bool
	SupportsExclusive    bool // always false: see Non-goals on exclusive arbitration
}

// candidateSampleRates are listed, together with each device's
// DefaultSampleRate, as its SupportedSampleRates; portaudio doesn't expose a
// full supported list directly, so this is an approximation and none of the
// candidates is checked against the device.
var candidateSampleRates = []int{44100, 48000, 88200, 96000, 176400, 192000}

// ListDevices enumerates output-capable devices. Initialize/Terminate
// bracket the call the way audio/microphone.go brackets its own stream
// lifetime.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, perr.Wrap("sink", perr.AudioBackendError, "failed to initialize portaudio", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, perr.Wrap("sink", perr.AudioBackendError, "failed to enumerate devices", err)
	}
	defaultOut, _ := portaudio.DefaultOutputDevice()

	var out []Device
	for i, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		d := Device{
			ID:                 i,
			HumanName:          info.Name,
			SupportedBitDepths: []int{16, 24, 32},
			IsDefault:          defaultOut != nil && info.Name == defaultOut.Name,
		}
		if info.HostApi != nil {
			d.APITag = info.HostApi.Name
		}
		for c := 1; c <= info.MaxOutputChannels && c <= 8; c++ {
			d.ChannelCounts = append(d.ChannelCounts, c)
		}
		d.SupportedSampleRates = approximateSupportedRates(info.DefaultSampleRate)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func approximateSupportedRates(defaultRate float64) []int {
	rates := []int{int(defaultRate)}
	for _, r := range candidateSampleRates {
		if r != int(defaultRate) {
			rates = append(rates, r)
		}
	}
	sort.Ints(rates)
	return rates
}

// FindDevice selects a device by id, exact human name, or
// (case-insensitive substring of) human name, or the default device when
// selector is empty.
func FindDevice(devices []Device, selector string) (Device, error) {
	if selector == "" {
		for _, d := range devices {
			if d.IsDefault {
				return d, nil
			}
		}
		if len(devices) > 0 {
			return devices[0], nil
		}
		return Device{}, perr.New("sink", perr.DeviceUnavailable, "no output devices found")
	}
	if id, err := strconv.Atoi(selector); err == nil {
		for _, d := range devices {
			if d.ID == id {
				return d, nil
			}
		}
	}
	for _, d := range devices {
		if d.HumanName == selector {
			return d, nil
		}
	}
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.HumanName), strings.ToLower(selector)) {
			return d, nil
		}
	}
	return Device{}, perr.New("sink", perr.DeviceUnavailable, "no device matches selector: "+selector)
}
