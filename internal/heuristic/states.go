package heuristic

import "strings"

// stateCodes is the set of valid lowercase USPS state abbreviations.
var stateCodes = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

// streetSuffixes mark the last token of a street address in a slug.
var streetSuffixes = map[string]bool{
	"st": true, "ave": true, "rd": true, "dr": true, "ln": true, "way": true,
	"ct": true, "pl": true, "blvd": true, "pkwy": true, "terrace": true, "circle": true,
}

// directionals stay upper-case when a street is title-cased.
var directionals = map[string]bool{
	"n": true, "s": true, "e": true, "w": true,
	"ne": true, "nw": true, "se": true, "sw": true,
}

// isState reports whether tok is a two-letter state code.
func isState(tok string) bool {
	_, ok := stateCodes[strings.ToLower(tok)]
	return ok
}

// StateName returns the full lowercase state name for a code, or "".
func StateName(code string) string {
	return stateCodes[strings.ToLower(strings.TrimSpace(code))]
}

// isZip reports whether tok is a five-digit zip code.
func isZip(tok string) bool {
	return len(tok) == 5 && isDigits(tok)
}

func isDigits(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}
