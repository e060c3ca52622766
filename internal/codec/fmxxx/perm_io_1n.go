package fmxxx

// IOs de 1 byte.
const (
	DIn1           = 1
	DIn2           = 2
	DIn3           = 3
	DIn4           = 4
	GSMSignal      = 21
	DOut3          = 50
	DOut4          = 51
	GnssStatus     = 71
	DataMode       = 80
	BattLevel      = 113
	DOut1          = 179
	DOut2          = 180
	SleepMode      = 200
	NetworkType    = 237
	Ignition       = 239
	Movement       = 240
	CrashDetection = 247
	Jamming        = 249
	Trip           = 250
	Immobilizer    = 251
	GreenDriving   = 254
	BTStatus       = 263
	InstantMov     = 303
)

var names1n = map[uint16]string{
	DIn1:           "Digital Input 1",
	DIn2:           "Digital Input 2",
	DIn3:           "Digital Input 3",
	DIn4:           "Digital Input 4",
	GSMSignal:      "GSM Signal",
	DOut3:          "Digital Output 3",
	DOut4:          "Digital Output 4",
	GnssStatus:     "GNSS Status",
	DataMode:       "Data Mode",
	BattLevel:      "Battery Level",
	DOut1:          "Digital Output 1",
	DOut2:          "Digital Output 2",
	SleepMode:      "Sleep Mode",
	NetworkType:    "Network Type",
	Ignition:       "Ignition",
	Movement:       "Movement",
	CrashDetection: "Crash Detection",
	Jamming:        "Jamming",
	Trip:           "Trip",
	Immobilizer:    "Immobilizer",
	GreenDriving:   "Green Driving Value",
	BTStatus:       "BT Status",
	InstantMov:     "Instant Movement",
	19:             "AdBlue Level Percent",
	23:             "Engine Load",
	31:             "Accelerator Pedal Position",
	37:             "Fuel Level Percent",
	142:            "Battery Level Percent",
	143:            "Door Status",
	705:            "BLE Battery 1",
	706:            "BLE Battery 2",
	709:            "BLE Humidity 1",
	710:            "BLE Humidity 2",
	10687:          "Status 1",
	10688:          "Status 2",
	10691:          "Alarm 1",
	10692:          "Alarm 2",
	10695:          "Input 1",
	10696:          "Input 2",
	10697:          "Input 3",
	10698:          "Input 4",
}
