package fmxxx

const (
	// IButton lleva el ID de la llave Dallas en 8 bytes.
	IButton = 78
	// ICCID partido en tres; X-bytes en Codec 8E, 8 bytes en Codec 8.
	CCIDPart1 = 219
	CCIDPart2 = 220
	CCIDPart3 = 221
	IMEI      = 1161
)

var names8n = map[uint16]string{
	IButton:   "iButton",
	CCIDPart1: "CCID Part1",
	CCIDPart2: "CCID Part2",
	CCIDPart3: "CCID Part3",
	IMEI:      "IMEI",
	5:         "Dallas Temperature ID 5",
	62:        "Dallas Temperature ID 1",
	63:        "Dallas Temperature ID 2",
	64:        "Dallas Temperature ID 3",
	65:        "Dallas Temperature ID 4",
	10611:     "RS232_COM1Data",
	10612:     "RS232_COM2Data",
}
