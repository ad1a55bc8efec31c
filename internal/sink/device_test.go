package sink

import "testing"

func TestFindDeviceEmptySelectorReturnsDefault(t *testing.T) {
	devices := []Device{
		{ID: 0, HumanName: "Speakers"},
		{ID: 1, HumanName: "Headphones", IsDefault: true},
	}
	d, err := FindDevice(devices, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != 1 {
		t.Fatalf("got device %d, want the default (1)", d.ID)
	}
}

func TestFindDeviceEmptySelectorFallsBackToFirst(t *testing.T) {
	devices := []Device{{ID: 0, HumanName: "Speakers"}}
	d, err := FindDevice(devices, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != 0 {
		t.Fatalf("got device %d, want 0", d.ID)
	}
}

func TestFindDeviceExactNameMatch(t *testing.T) {
	devices := []Device{
		{ID: 0, HumanName: "Speakers"},
		{ID: 1, HumanName: "USB Audio Device"},
	}
	d, err := FindDevice(devices, "USB Audio Device")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != 1 {
		t.Fatalf("got device %d, want 1", d.ID)
	}
}

func TestFindDeviceSubstringFallback(t *testing.T) {
	devices := []Device{{ID: 0, HumanName: "USB Audio Device (2ch)"}}
	d, err := FindDevice(devices, "usb audio")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != 0 {
		t.Fatalf("got device %d, want 0", d.ID)
	}
}

func TestFindDeviceNoMatchReturnsError(t *testing.T) {
	devices := []Device{{ID: 0, HumanName: "Speakers"}}
	if _, err := FindDevice(devices, "nonexistent"); err == nil {
		t.Fatal("expected error for unmatched selector")
	}
}

func TestFindDeviceNoDevicesReturnsError(t *testing.T) {
	if _, err := FindDevice(nil, ""); err == nil {
		t.Fatal("expected error when no devices are available")
	}
}

func TestApproximateSupportedRatesIncludesDefault(t *testing.T) {
	rates := approximateSupportedRates(44100)
	found := false
	for _, r := range rates {
		if r == 44100 {
			found = true
		}
	}
	if !found {
		t.Fatalf("rates %v does not include the default rate", rates)
	}
	for i := 1; i < len(rates); i++ {
		if rates[i] <= rates[i-1] {
			t.Fatalf("rates %v not sorted/unique", rates)
		}
	}
}
