// Package fmxxx holds the IO element ids and display names used for
// Teltonika FMx devices.
package fmxxx

// Derived field names written by the post-processor.
const (
	IButtonKey          = "IButton"
	IButtonReverseKey   = "IButton_Reverse"
	IButtonConnectedKey = "IButton_Connected"
	CCIDKey             = "CCID"
)

var registry = merge(names1n, names2n, names4n, names8n)

func merge(parts ...map[uint16]string) map[uint16]string {
	out := make(map[uint16]string)
	for _, p := range parts {
		for id, name := range p {
			out[id] = name
		}
	}
	return out
}

// Name resolves an IO id. Unknown ids return ok=false.
func Name(id uint16) (string, bool) {
	n, ok := registry[id]
	return n, ok
}

// Len reports the number of known ids.
func Len() int { return len(registry) }

// Each calls fn for every known id, in no particular order.
func Each(fn func(id uint16, name string)) {
	for id, n := range registry {
		fn(id, n)
	}
}
