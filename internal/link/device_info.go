package link

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// DeviceInfo is the device-level event sent next to tracking records.
type DeviceInfo struct {
	IMEI       string
	ICCID      string
	RemoteIP   string
	RemotePort int
	State      DeviceState
}

// NewDeviceInfo splits a host:port remote address.
func NewDeviceInfo(imei, remote string, state DeviceState) DeviceInfo {
	info := DeviceInfo{IMEI: imei, State: state}
	if host, port, err := net.SplitHostPort(remote); err == nil {
		info.RemoteIP = host
		info.RemotePort, _ = strconv.Atoi(port)
	}
	return info
}

type deviceConnectPayload struct {
	DeviceConnect bool   `json:"device_connect"`
	IMEI          string `json:"imei"`
	ICCID         string `json:"iccid,omitempty"`
	RemoteIP      string `json:"remote_ip,omitempty"`
	RemotePort    int    `json:"remote_port,omitempty"`
}

type deviceUpdatePayload struct {
	DeviceUpdate bool   `json:"device_update"`
	IMEI         string `json:"imei"`
	ICCID        string `json:"iccid,omitempty"`
}

type deviceDisconnectPayload struct {
	DeviceDisconnect bool   `json:"device_disconnect"`
	IMEI             string `json:"imei"`
}

func encodeDevice(info DeviceInfo) ([]byte, error) {
	var pl any
	switch info.State {
	case DeviceStateConnect:
		pl = deviceConnectPayload{
			DeviceConnect: true,
			IMEI:          info.IMEI,
			ICCID:         info.ICCID,
			RemoteIP:      info.RemoteIP,
			RemotePort:    info.RemotePort,
		}
	case DeviceStateUpdate:
		pl = deviceUpdatePayload{DeviceUpdate: true, IMEI: info.IMEI, ICCID: info.ICCID}
	case DeviceStateDisconnect:
		pl = deviceDisconnectPayload{DeviceDisconnect: true, IMEI: info.IMEI}
	default:
		return nil, fmt.Errorf("link: device event with state %s", info.State)
	}
	return json.Marshal(pl)
}
