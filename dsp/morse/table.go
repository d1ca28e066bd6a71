package morse

// morseTable maps dot/dash patterns to characters.
var morseTable = map[string]string{
	// Letters
	".-":   "A",
	"-...": "B",
	"-.-.": "C",
	"-..":  "D",
	".":    "E",
	"..-.": "F",
	"--.":  "G",
	"....": "H",
	"..":   "I",
	".---": "J",
	"-.-":  "K",
	".-..": "L",
	"--":   "M",
	"-.":   "N",
	"---":  "O",
	".--.": "P",
	"--.-": "Q",
	".-.":  "R",
	"...":  "S",
	"-":    "T",
	"..-":  "U",
	"...-": "V",
	".--":  "W",
	"-..-": "X",
	"-.--": "Y",
	"--..": "Z",

	// Numbers
	"-----": "0",
	".----": "1",
	"..---": "2",
	"...--": "3",
	"....-": "4",
	".....": "5",
	"-....": "6",
	"--...": "7",
	"---..": "8",
	"----.": "9",

	// Punctuation
	".-.-.-": ".",
	"--..--": ",",
	"..--..": "?",
	".----.": "'",
	"-.-.--": "!",
	"-..-.":  "/",
	"-.--.":  "(",
	"-.--.-": ")",
	".-...":  "&",
	"---...": ":",
	"-.-.-.": ";",
	"-...-":  "=",
	".-.-.":  "+",
	"-....-": "-",
	"..--.-": "_",
	".-..-.": "\"",
	".--.-.": "@",
}

// decodeSymbol converts a dot/dash pattern to a character. Patterns
// with no table entry decode to "?" and decoding continues.
func decodeSymbol(code string) string {
	if char, ok := morseTable[code]; ok {
		return char
	}
	return "?"
}
