package codec

// CRC16IBM computes CRC-16/IBM (ARC): poly 0xA001 reflected, init 0x0000.
func CRC16IBM(b []byte) uint16 {
	var crc uint16
	for _, v := range b {
		crc ^= uint16(v)
		for i := 0; i < 8; i++ {
			if (crc & 1) == 1 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// CRCMatches compares the payload CRC against the 4-byte CRC field.
// Teltonika sends 4 bytes but only the low 16 bits carry the checksum.
func CRCMatches(payload []byte, field uint32) bool {
	return uint32(CRC16IBM(payload)) == field&0xFFFF
}
