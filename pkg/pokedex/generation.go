package pokedex

import "strings"

var romanNumerals = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5,
	"vi": 6, "vii": 7, "viii": 8, "ix": 9,
}

var numeralsByID = []string{"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX"}

// regions holds the main region of each generation, used when the upstream
// generation record is not at hand.
var regions = map[int]string{
	1: "kanto",
	2: "johto",
	3: "hoenn",
	4: "sinnoh",
	5: "unova",
	6: "kalos",
	7: "alola",
	8: "galar",
	9: "paldea",
}

// GenerationID converts "generation-iv" to 4.
// Unknown or malformed names return false.
func GenerationID(name string) (int, bool) {
	prefix, numeral, ok := strings.Cut(strings.ToLower(strings.TrimSpace(name)), "-")
	if !ok || prefix != "generation" {
		return 0, false
	}
	id, ok := romanNumerals[numeral]
	return id, ok
}

// GenerationDisplayName returns "Generation IV" for 4, or the raw name when
// the id has no numeral.
func GenerationDisplayName(id int, name string) string {
	if id > 0 && id < len(numeralsByID) {
		return "Generation " + numeralsByID[id]
	}
	return titleCase(name)
}

// RegionForGeneration returns the main region of a generation.
func RegionForGeneration(id int) (string, bool) {
	region, ok := regions[id]
	return region, ok
}

// titleCase turns "mr-mime" into "Mr Mime".
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ' ' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
