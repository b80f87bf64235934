package pokeapi

import (
	"net/url"
	"strconv"
	"strings"
)

// Raw PokeAPI v2 records. Optional upstream fields are pointers or slices
// so that absence stays observable to the mapping layer.

// NamedResource is a reference to another resource.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ID parses the trailing numeric id out of the resource URL.
func (r NamedResource) ID() (int, bool) {
	return IDFromURL(r.URL)
}

// NamedResourceList is a paginated list of resources.
type NamedResourceList struct {
	Count   int             `json:"count"`
	Next    *string         `json:"next"`
	Results []NamedResource `json:"results"`
}

// LocalizedName is a name in a given language.
type LocalizedName struct {
	Name     string        `json:"name"`
	Language NamedResource `json:"language"`
}

// TypeSlot is a type assigned to a Pokémon.
type TypeSlot struct {
	Slot int           `json:"slot"`
	Type NamedResource `json:"type"`
}

// AbilitySlot is an ability a Pokémon may have.
type AbilitySlot struct {
	Ability  NamedResource `json:"ability"`
	IsHidden bool          `json:"is_hidden"`
	Slot     int           `json:"slot"`
}

// StatValue is a base stat value.
type StatValue struct {
	BaseStat int           `json:"base_stat"`
	Effort   int           `json:"effort"`
	Stat     NamedResource `json:"stat"`
}

// Artwork holds a single front image.
type Artwork struct {
	FrontDefault *string `json:"front_default"`
}

// OtherSprites holds the alternative sprite sets.
type OtherSprites struct {
	OfficialArtwork Artwork `json:"official-artwork"`
	Home            Artwork `json:"home"`
}

// Sprites holds the sprite URLs of a Pokémon.
type Sprites struct {
	FrontDefault *string      `json:"front_default"`
	FrontShiny   *string      `json:"front_shiny"`
	BackDefault  *string      `json:"back_default"`
	BackShiny    *string      `json:"back_shiny"`
	Other        OtherSprites `json:"other"`
}

// Pokemon is the /pokemon/{id} record.
type Pokemon struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Height         *int           `json:"height"`
	Weight         *int           `json:"weight"`
	BaseExperience *int           `json:"base_experience"`
	Types          []TypeSlot     `json:"types"`
	Abilities      []AbilitySlot  `json:"abilities"`
	Stats          []StatValue    `json:"stats"`
	Sprites        Sprites        `json:"sprites"`
	Species        *NamedResource `json:"species"`
}

// FlavorText is a localized Pokédex entry.
type FlavorText struct {
	FlavorText string         `json:"flavor_text"`
	Language   NamedResource  `json:"language"`
	Version    *NamedResource `json:"version"`
}

// Genus is a localized genus.
type Genus struct {
	Genus    string        `json:"genus"`
	Language NamedResource `json:"language"`
}

// APIResource is an unnamed reference.
type APIResource struct {
	URL string `json:"url"`
}

// Species is the /pokemon-species/{id} record.
type Species struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name"`
	GenderRate         *int            `json:"gender_rate"`
	CaptureRate        *int            `json:"capture_rate"`
	BaseHappiness      *int            `json:"base_happiness"`
	HatchCounter       *int            `json:"hatch_counter"`
	IsBaby             bool            `json:"is_baby"`
	IsLegendary        bool            `json:"is_legendary"`
	IsMythical         bool            `json:"is_mythical"`
	Generation         *NamedResource  `json:"generation"`
	EvolutionChain     *APIResource    `json:"evolution_chain"`
	EvolvesFromSpecies *NamedResource  `json:"evolves_from_species"`
	EggGroups          []NamedResource `json:"egg_groups"`
	FlavorTextEntries  []FlavorText    `json:"flavor_text_entries"`
	Genera             []Genus         `json:"genera"`
	Habitat            *NamedResource  `json:"habitat"`
	Shape              *NamedResource  `json:"shape"`
	GrowthRate         *NamedResource  `json:"growth_rate"`
	Color              *NamedResource  `json:"color"`
}

// Generation is the /generation/{id} record.
type Generation struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	MainRegion     *NamedResource  `json:"main_region"`
	PokemonSpecies []NamedResource `json:"pokemon_species"`
	Names          []LocalizedName `json:"names"`
}

// Type is the /type/{id} record.
type Type struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Names []LocalizedName `json:"names"`
}

// IDFromURL returns the last numeric path segment of a resource URL,
// e.g. 25 for "https://pokeapi.co/api/v2/pokemon-species/25/".
func IDFromURL(raw string) (int, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return 0, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	id, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
