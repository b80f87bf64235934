// Package testutil provides PokeAPI fakes for tests.
package testutil

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
)

var generationNames = []string{"", "i", "ii", "iii", "iv", "v", "vi", "vii", "viii", "ix"}

// PokemonFixture describes one Pokémon and its species.
type PokemonFixture struct {
	ID         int
	Name       string
	Types      []string
	Generation int
	Legendary  bool
	Mythical   bool
	Baby       bool
	Genus      string
	FlavorText string
	Artwork    string
}

// Pikachu is a complete fixture.
func Pikachu() PokemonFixture {
	return PokemonFixture{
		ID:         25,
		Name:       "pikachu",
		Types:      []string{"electric"},
		Generation: 1,
		Genus:      "Mouse Pokémon",
		FlavorText: "When several of\nthese POKéMON gather,\ftheir electricity could\nbuild and cause lightning storms.",
		Artwork:    "http://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork/25.png",
	}
}

// Generic returns a minimal fixture for id.
func Generic(id int) PokemonFixture {
	return PokemonFixture{
		ID:         id,
		Name:       fmt.Sprintf("pokemon-%d", id),
		Types:      []string{"normal"},
		Generation: 1,
	}
}

// Pokemon builds the /pokemon record. Resource URLs point at baseURL.
func (f PokemonFixture) Pokemon(baseURL string) *pokeapi.Pokemon {
	height, weight, exp := 4, 60, 112
	p := &pokeapi.Pokemon{
		ID:             f.ID,
		Name:           f.Name,
		Height:         &height,
		Weight:         &weight,
		BaseExperience: &exp,
		Abilities: []pokeapi.AbilitySlot{
			{Ability: pokeapi.NamedResource{Name: "static", URL: baseURL + "/ability/9/"}, Slot: 1},
			{Ability: pokeapi.NamedResource{Name: "lightning-rod", URL: baseURL + "/ability/31/"}, IsHidden: true, Slot: 3},
		},
		Stats: []pokeapi.StatValue{
			{BaseStat: 35, Stat: pokeapi.NamedResource{Name: "hp"}},
			{BaseStat: 55, Stat: pokeapi.NamedResource{Name: "attack"}},
		},
		Species: &pokeapi.NamedResource{
			Name: f.Name,
			URL:  fmt.Sprintf("%s/pokemon-species/%d/", baseURL, f.ID),
		},
	}
	for i, t := range f.Types {
		p.Types = append(p.Types, pokeapi.TypeSlot{Slot: i + 1, Type: pokeapi.NamedResource{Name: t}})
	}
	front := fmt.Sprintf("http://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/%d.png", f.ID)
	p.Sprites.FrontDefault = &front
	if f.Artwork != "" {
		artwork := f.Artwork
		p.Sprites.Other.OfficialArtwork.FrontDefault = &artwork
	}
	return p
}

// Species builds the /pokemon-species record.
func (f PokemonFixture) Species(baseURL string) *pokeapi.Species {
	genderRate, captureRate, happiness, hatch := 4, 190, 50, 10
	s := &pokeapi.Species{
		ID:            f.ID,
		Name:          f.Name,
		GenderRate:    &genderRate,
		CaptureRate:   &captureRate,
		BaseHappiness: &happiness,
		HatchCounter:  &hatch,
		IsBaby:        f.Baby,
		IsLegendary:   f.Legendary,
		IsMythical:    f.Mythical,
		EvolutionChain: &pokeapi.APIResource{
			URL: fmt.Sprintf("%s/evolution-chain/%d/", baseURL, 10),
		},
		EggGroups:  []pokeapi.NamedResource{{Name: "ground"}, {Name: "fairy"}},
		Habitat:    &pokeapi.NamedResource{Name: "forest"},
		Shape:      &pokeapi.NamedResource{Name: "quadruped"},
		GrowthRate: &pokeapi.NamedResource{Name: "medium"},
		Color:      &pokeapi.NamedResource{Name: "yellow"},
	}
	if f.Generation > 0 && f.Generation < len(generationNames) {
		s.Generation = &pokeapi.NamedResource{
			Name: "generation-" + generationNames[f.Generation],
			URL:  fmt.Sprintf("%s/generation/%d/", baseURL, f.Generation),
		}
	}
	if f.Genus != "" {
		s.Genera = []pokeapi.Genus{
			{Genus: "Mausmon", Language: pokeapi.NamedResource{Name: "de"}},
			{Genus: f.Genus, Language: pokeapi.NamedResource{Name: "en"}},
		}
	}
	if f.FlavorText != "" {
		s.FlavorTextEntries = []pokeapi.FlavorText{
			{FlavorText: "an older entry", Language: pokeapi.NamedResource{Name: "en"}},
			{FlavorText: f.FlavorText, Language: pokeapi.NamedResource{Name: "en"}},
			{FlavorText: "Texte français", Language: pokeapi.NamedResource{Name: "fr"}},
		}
	}
	return s
}

// GenerationFixture builds a /generation record with members species.
func GenerationFixture(baseURL string, id int, region string, members int) *pokeapi.Generation {
	g := &pokeapi.Generation{
		ID:   id,
		Name: "generation-" + generationNames[id],
	}
	if region != "" {
		g.MainRegion = &pokeapi.NamedResource{Name: region, URL: baseURL + "/region/" + region + "/"}
	}
	for i := 1; i <= members; i++ {
		g.PokemonSpecies = append(g.PokemonSpecies, pokeapi.NamedResource{
			Name: fmt.Sprintf("species-%d", i),
			URL:  fmt.Sprintf("%s/pokemon-species/%d/", baseURL, i),
		})
	}
	return g
}

// NotFoundError is the error the client returns for a 404.
func NotFoundError(endpoint string) error {
	return &pokeapi.APIError{StatusCode: http.StatusNotFound, Class: pokeapi.ErrorClassNotFound, Endpoint: endpoint}
}

// ServerError is a transient upstream error.
func ServerError(endpoint string) error {
	return &pokeapi.APIError{StatusCode: http.StatusServiceUnavailable, Class: pokeapi.ErrorClassServer, Endpoint: endpoint}
}

// ClientError is a permanent upstream error.
func ClientError(endpoint string) error {
	return &pokeapi.APIError{StatusCode: http.StatusBadRequest, Class: pokeapi.ErrorClassClient, Endpoint: endpoint}
}

// lastSegment returns the last path segment of a reference.
func lastSegment(ref string) string {
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
