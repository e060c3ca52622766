package utilities

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CreateLog appends one timestamped line to dir/<prefix>_<yyyymmdd>.log.
func CreateLog(dir, prefix, message string) error {
	return createLogAt(time.Now(), dir, prefix, message)
}

func createLogAt(now time.Time, dir, prefix, message string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	filename := filepath.Join(dir, prefix+"_"+now.Format("20060102")+".log")

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	line := now.Format("15:04:05") + " - " + message + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// HexDump logs a raw frame payload for one device under the HEXDUMP prefix.
func HexDump(dir, imei, remote string, crcOK bool, payload []byte) error {
	msg := fmt.Sprintf("imei=%s remote=%s len=%d crc_ok=%t payload=%s",
		imei, remote, len(payload), crcOK, strings.ToUpper(hex.EncodeToString(payload)))
	return CreateLog(dir, "HEXDUMP", msg)
}
