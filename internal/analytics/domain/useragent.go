package domain

import (
	"strings"

	"github.com/mssola/useragent"
)

// Metadata keys derived from the User-Agent header.
const (
	MetaBrowser    = "browser"
	MetaOS         = "os"
	MetaDevice     = "device"
	MetaScreenSize = "screenSize"
)

// AgentInfo is what the User-Agent header says about the client.
type AgentInfo struct {
	Browser string
	OS      string
	// Family is a coarse device family: "iPhone", "iPad", "iPod", "Mobile", "Spider" or "Other".
	Family string
}

// ParseUserAgent extracts browser, OS and device family. An empty header yields the zero value.
func ParseUserAgent(header string) AgentInfo {
	header = strings.TrimSpace(header)
	if header == "" {
		return AgentInfo{}
	}
	ua := useragent.New(header)
	info := AgentInfo{OS: ua.OS(), Family: "Other"}
	if name, version := ua.Browser(); name != "" {
		info.Browser = strings.TrimSpace(name + " " + version)
	}
	switch platform := ua.Platform(); {
	case platform == "iPhone" || platform == "iPad" || platform == "iPod":
		info.Family = platform
	case ua.Bot():
		info.Family = "Spider"
	case ua.Mobile():
		info.Family = "Mobile"
	}
	return info
}

// ClassifyDevice maps a device family to a stored device class. It is a heuristic: iPhone, iPad and any
// family containing "Mobile" are mobile, everything else (including no User-Agent at all) is desktop.
func ClassifyDevice(family string) string {
	if family == "iPad" || family == "iPhone" || strings.Contains(family, "Mobile") {
		return DeviceMobile
	}
	return DeviceDesktop
}

// MergeMetadata overlays client-supplied values on the values derived from the User-Agent. Client values
// win; empty client values do not erase derived ones.
func MergeMetadata(client map[string]string, agent AgentInfo, hasAgent bool) map[string]any {
	out := make(map[string]any, len(client)+3)
	if hasAgent {
		out[MetaBrowser] = agent.Browser
		out[MetaOS] = agent.OS
		out[MetaDevice] = agent.Family
	}
	for k, v := range client {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
