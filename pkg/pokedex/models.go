package pokedex

// View models served to clients. They are built wholesale by the mapping
// functions and never modified afterwards.

// Summary is the list projection of one Pokémon.
type Summary struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	GenerationID *int     `json:"generation_id"`
	Types        []string `json:"types"`
	ImageURL     *string  `json:"image_url"`
	IsLegendary  bool     `json:"is_legendary"`
	IsMythical   bool     `json:"is_mythical"`
	IsBaby       bool     `json:"is_baby"`
}

// Ability is an ability entry of a Detail.
type Ability struct {
	Name     string `json:"name"`
	IsHidden bool   `json:"is_hidden"`
}

// Stat is a base stat entry of a Detail.
type Stat struct {
	Name     string `json:"name"`
	BaseStat int    `json:"base_stat"`
}

// Sprites holds the image references of a Detail. All URLs use https.
type Sprites struct {
	FrontDefault    *string `json:"front_default"`
	FrontShiny      *string `json:"front_shiny"`
	BackDefault     *string `json:"back_default"`
	BackShiny       *string `json:"back_shiny"`
	OfficialArtwork *string `json:"official_artwork"`
}

// Breeding holds the breeding attributes of a Detail.
type Breeding struct {
	// GenderRate is the chance of being female in eighths; -1 means genderless.
	GenderRate *int `json:"gender_rate"`

	// FemaleRatio is GenderRate as a fraction in [0,1], nil when genderless or unknown.
	FemaleRatio *float64 `json:"female_ratio"`

	EggGroups    []string `json:"egg_groups"`
	HatchCounter *int     `json:"hatch_counter"`
	GrowthRate   *string  `json:"growth_rate"`
}

// EvolutionChainRef points at the evolution chain resource.
type EvolutionChainRef struct {
	ID  *int    `json:"id"`
	URL *string `json:"url"`
}

// Detail is the full projection of one Pokémon.
type Detail struct {
	Summary

	Genus          string            `json:"genus"`
	Description    string            `json:"description"`
	Height         *int              `json:"height"`
	Weight         *int              `json:"weight"`
	BaseExperience *int              `json:"base_experience"`
	Abilities      []Ability         `json:"abilities"`
	Stats          []Stat            `json:"stats"`
	Sprites        Sprites           `json:"sprites"`
	Breeding       Breeding          `json:"breeding"`
	CaptureRate    *int              `json:"capture_rate"`
	BaseHappiness  *int              `json:"base_happiness"`
	Habitat        *string           `json:"habitat"`
	Shape          *string           `json:"shape"`
	Color          *string           `json:"color"`
	EvolvesFrom    *string           `json:"evolves_from"`
	EvolutionChain EvolutionChainRef `json:"evolution_chain"`
	RegionName     *string           `json:"region_name"`
	SpeciesURL     *string           `json:"species_url"`
}

// Grouping describes one generation.
type Grouping struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Region      *string `json:"region"`
	MemberCount int     `json:"member_count"`
}

// Category describes one type.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}
