package fmxxx

const (
	AIn1         = 9
	AIn2         = 10
	AIn3         = 11
	VehicleSpeed = 24
	ExtVolt      = 66
	BatteryVolt  = 67
	BattCurrent  = 68
	PCBTemp      = 70
	GnssPDOP     = 181
	GnssHDOP     = 182
	GsmCellId    = 205
	GsmAreaCode  = 206
	AIn4         = 245
)

var names2n = map[uint16]string{
	AIn1:         "Analog Input 1",
	AIn2:         "Analog Input 2",
	AIn3:         "Analog Input 3",
	VehicleSpeed: "Speed",
	ExtVolt:      "External Voltage",
	BatteryVolt:  "Battery Voltage",
	BattCurrent:  "Battery Current",
	PCBTemp:      "PCB Temperature",
	GnssPDOP:     "GNSS PDOP",
	GnssHDOP:     "GNSS HDOP",
	GsmCellId:    "GSM Cell ID",
	GsmAreaCode:  "GSM Area Code",
	AIn4:         "Analog Input 4",
	25:           "Engine Temperature",
	30:           "Vehicle Speed",
	35:           "Engine RPM",
	88:           "Engine Speed",
	89:           "Axle weight 1",
	90:           "Axle weight 2",
	135:          "Fuel Rate",
	141:          "Battery Temperature",
	191:          "Tachograph Vehicle Speed",
	701:          "BLE Temperature 1",
	702:          "BLE Temperature 2",
	10487:        "1Wire Humidity 1",
	10488:        "1Wire Humidity 2",
	10683:        "Temperature 1",
	10684:        "Temperature 2",
	10685:        "Temperature 3",
	10686:        "Temperature 4",
}
