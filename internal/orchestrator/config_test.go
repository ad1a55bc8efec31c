package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xpuSetting.conf")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigTypesValues(t *testing.T) {
	path := writeConfig(t, `
[playback]
volume = 80
gapless = false
gain_db = 1.5
name = Living Room
devices = hdmi, usb, default
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	v, ok := cfg.Get("playback", "volume")
	if !ok || v.Kind != KindInt || v.Int != 80 {
		t.Fatalf("volume = %+v, want int 80", v)
	}
	v, ok = cfg.Get("playback", "gapless")
	if !ok || v.Kind != KindBool || v.Bool != false {
		t.Fatalf("gapless = %+v, want bool false", v)
	}
	v, ok = cfg.Get("playback", "gain_db")
	if !ok || v.Kind != KindFloat || v.Float != 1.5 {
		t.Fatalf("gain_db = %+v, want float 1.5", v)
	}
	v, ok = cfg.Get("playback", "name")
	if !ok || v.Kind != KindString || v.Str != "Living Room" {
		t.Fatalf("name = %+v, want string 'Living Room'", v)
	}
	v, ok = cfg.Get("playback", "devices")
	if !ok || v.Kind != KindList || len(v.List) != 3 || v.List[1] != "usb" {
		t.Fatalf("devices = %+v, want list [hdmi usb default]", v)
	}
}

func TestLoadConfigIgnoresCommentsAndBlankLines(t *testing.T) {
	path := writeConfig(t, `
; leading comment
# another comment

[section]
key = value
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	v, ok := cfg.Get("section", "key")
	if !ok || v.Str != "value" {
		t.Fatalf("key = %+v, want 'value'", v)
	}
}

func TestLoadConfigRejectsMissingEquals(t *testing.T) {
	path := writeConfig(t, "[section]\nnotakeyvalue\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for line without '='")
	}
}
