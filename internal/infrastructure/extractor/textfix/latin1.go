package textfix

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// RepairLatin1 undoes UTF-8 text that was decoded as Latin-1 somewhere in
// the export pipeline ("OkÃ©" becomes "Oké"). Strings that do not round-trip
// are returned unchanged.
func RepairLatin1(s string) string {
	if s == "" || isASCII(s) {
		return s
	}
	encoded, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s
	}
	if !utf8.ValidString(encoded) {
		return s
	}
	return encoded
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
