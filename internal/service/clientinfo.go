package service

import (
	"strings"

	"github.com/mssola/useragent"
)

// ClientInfo is the request metadata recorded on a login session.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type agentDetails struct {
	Browser    string
	OS         string
	DeviceType string
}

func describeAgent(raw string) agentDetails {
	if strings.TrimSpace(raw) == "" {
		return agentDetails{DeviceType: "unknown"}
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()

	device := "desktop"
	switch {
	case ua.Bot():
		device = "bot"
	case ua.Mobile():
		device = "mobile"
	}

	return agentDetails{
		Browser:    strings.TrimSpace(name + " " + version),
		OS:         ua.OS(),
		DeviceType: device,
	}
}
