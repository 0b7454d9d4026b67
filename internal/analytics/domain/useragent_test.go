package domain

import "testing"

const (
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaIPad    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	uaAndroid = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func TestParseUserAgent_DeviceClass(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		want   string
	}{
		{"iphone", uaIPhone, DeviceMobile},
		{"ipad", uaIPad, DeviceMobile},
		{"android phone", uaAndroid, DeviceMobile},
		{"windows desktop", uaDesktop, DeviceDesktop},
		{"no header", "", DeviceDesktop},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			info := ParseUserAgent(tc.header)
			if got := ClassifyDevice(info.Family); got != tc.want {
				t.Errorf("ClassifyDevice(%q) = %q, want %q", info.Family, got, tc.want)
			}
		})
	}
}

func TestParseUserAgent_Fields(t *testing.T) {
	info := ParseUserAgent(uaIPhone)
	if info.Family != "iPhone" {
		t.Errorf("family = %q, want iPhone", info.Family)
	}
	if info.Browser == "" || info.OS == "" {
		t.Errorf("info = %+v, want browser and os", info)
	}
	if (ParseUserAgent("   ") != AgentInfo{}) {
		t.Error("blank header should yield zero info")
	}
}

func TestClassifyDevice(t *testing.T) {
	for family, want := range map[string]string{
		"iPhone":         DeviceMobile,
		"iPad":           DeviceMobile,
		"Mobile":         DeviceMobile,
		"Generic Mobile": DeviceMobile,
		"iPod":           DeviceDesktop,
		"Other":          DeviceDesktop,
		"":               DeviceDesktop,
	} {
		if got := ClassifyDevice(family); got != want {
			t.Errorf("ClassifyDevice(%q) = %q, want %q", family, got, want)
		}
	}
}

func TestMergeMetadata_ClientWins(t *testing.T) {
	agent := AgentInfo{Browser: "Chrome 120", OS: "Windows 10", Family: "Other"}
	got := MergeMetadata(map[string]string{MetaBrowser: "Custom", MetaOS: "", MetaScreenSize: "1920x1080"}, agent, true)

	if got[MetaBrowser] != "Custom" {
		t.Errorf("browser = %v, want client value", got[MetaBrowser])
	}
	if got[MetaOS] != "Windows 10" {
		t.Errorf("os = %v, want derived value", got[MetaOS])
	}
	if got[MetaDevice] != "Other" {
		t.Errorf("device = %v", got[MetaDevice])
	}
	if got[MetaScreenSize] != "1920x1080" {
		t.Errorf("screenSize = %v", got[MetaScreenSize])
	}
}

func TestMergeMetadata_NoAgent(t *testing.T) {
	got := MergeMetadata(map[string]string{MetaScreenSize: "390x844"}, AgentInfo{}, false)
	if len(got) != 1 || got[MetaScreenSize] != "390x844" {
		t.Errorf("metadata = %v", got)
	}
	if got := MergeMetadata(nil, AgentInfo{}, false); got == nil || len(got) != 0 {
		t.Errorf("empty metadata = %v, want empty map", got)
	}
}
