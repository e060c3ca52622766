package fmxxx

const (
	DallasTemp1  = 72
	DallasTemp2  = 73
	DallasTemp3  = 74
	DallasTemp4  = 75
	FuelCounter  = 76
	TripOdometer = 199
	TotalOd      = 216
	ActiveGsmOpe = 241
	ConnQuality  = 1148
)

var names4n = map[uint16]string{
	DallasTemp1:  "Dallas Temperature 1",
	DallasTemp2:  "Dallas Temperature 2",
	DallasTemp3:  "Dallas Temperature 3",
	DallasTemp4:  "Dallas Temperature 4",
	FuelCounter:  "Fuel Counter",
	TripOdometer: "Trip Odometer",
	TotalOd:      "Total Odometer",
	ActiveGsmOpe: "Active GSM Operator",
	ConnQuality:  "Connectivity Quality",
	12:           "Program Number",
	13:           "Module ID",
	14:           "Engine Worktime",
	15:           "Engine Worktime (Counted)",
	16:           "Total Mileage (Counted)",
	17:           "Fuel Consumed (counted)",
	18:           "Fuel Rate (Counted)",
	20:           "AdBlue Level Liters",
	26:           "Axle 1 Load",
	27:           "Axle 2 Load",
	33:           "Fuel Consumed",
	34:           "Fuel Level Liters",
	36:           "Total Mileage",
	87:           "Fuel Level",
	192:          "Odometer",
	193:          "Trip Distance",
	194:          "Timestamp",
	449:          "Ignition On Counter",
	483:          "Impulse Counter 2",
	521:          "Load Weight",
	636:          "UMTS/LTE Cell ID",
	10348:        "Fuel level 2",
	10640:        "Impulse counter frequency 1",
	10641:        "Impulse counter RPM 1",
	10642:        "Impulse counter frequency 2",
	10643:        "Impulse counter RPM 2",
	10911:        "Impulse counter value 1",
	10912:        "Impulse counter value 3",
	10913:        "Impulse counter frequency 3",
	10914:        "Impulse counter RPM 3",
	10915:        "Impulse counter value 4",
	10916:        "Impulse counter frequency 4",
	10917:        "Impulse counter RPM 4",
}
