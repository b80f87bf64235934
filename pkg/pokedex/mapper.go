package pokedex

import (
	"strings"

	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
)

// Fallbacks for missing localized text.
const (
	UnknownGenus  = "Unknown Genus"
	NoDescription = "No description available."
)

const language = "en"

// MapSummary builds the list projection. species may be nil.
func MapSummary(p *pokeapi.Pokemon, species *pokeapi.Species) Summary {
	s := Summary{
		ID:    p.ID,
		Name:  p.Name,
		Types: typeNames(p.Types),
		ImageURL: firstURL(
			p.Sprites.Other.OfficialArtwork.FrontDefault,
			p.Sprites.Other.Home.FrontDefault,
			p.Sprites.FrontDefault,
		),
	}
	if species != nil {
		s.GenerationID = generationOf(species)
		s.IsLegendary = species.IsLegendary
		s.IsMythical = species.IsMythical
		s.IsBaby = species.IsBaby
	}
	return s
}

// MapDetail builds the full projection. species may be nil; every optional
// field then takes its fallback.
func MapDetail(p *pokeapi.Pokemon, species *pokeapi.Species) Detail {
	d := Detail{
		Summary:        MapSummary(p, species),
		Genus:          UnknownGenus,
		Description:    NoDescription,
		Height:         p.Height,
		Weight:         p.Weight,
		BaseExperience: p.BaseExperience,
		Abilities:      make([]Ability, 0, len(p.Abilities)),
		Stats:          make([]Stat, 0, len(p.Stats)),
		Sprites: Sprites{
			FrontDefault:    secureURL(p.Sprites.FrontDefault),
			FrontShiny:      secureURL(p.Sprites.FrontShiny),
			BackDefault:     secureURL(p.Sprites.BackDefault),
			BackShiny:       secureURL(p.Sprites.BackShiny),
			OfficialArtwork: secureURL(p.Sprites.Other.OfficialArtwork.FrontDefault),
		},
		Breeding: Breeding{EggGroups: []string{}},
	}

	for _, a := range p.Abilities {
		d.Abilities = append(d.Abilities, Ability{Name: a.Ability.Name, IsHidden: a.IsHidden})
	}
	for _, st := range p.Stats {
		d.Stats = append(d.Stats, Stat{Name: st.Stat.Name, BaseStat: st.BaseStat})
	}
	if p.Species != nil && p.Species.URL != "" {
		d.SpeciesURL = secureURL(&p.Species.URL)
	}

	if species == nil {
		return d
	}

	if genus := englishGenus(species.Genera); genus != "" {
		d.Genus = genus
	}
	if text := englishFlavorText(species.FlavorTextEntries); text != "" {
		d.Description = text
	}

	d.Breeding.GenderRate = species.GenderRate
	d.Breeding.FemaleRatio = femaleRatio(species.GenderRate)
	d.Breeding.HatchCounter = species.HatchCounter
	d.Breeding.GrowthRate = resourceName(species.GrowthRate)
	for _, g := range species.EggGroups {
		d.Breeding.EggGroups = append(d.Breeding.EggGroups, g.Name)
	}

	d.CaptureRate = species.CaptureRate
	d.BaseHappiness = species.BaseHappiness
	d.Habitat = resourceName(species.Habitat)
	d.Shape = resourceName(species.Shape)
	d.Color = resourceName(species.Color)
	d.EvolvesFrom = resourceName(species.EvolvesFromSpecies)

	if chain := species.EvolutionChain; chain != nil && chain.URL != "" {
		d.EvolutionChain.URL = secureURL(&chain.URL)
		if id, ok := pokeapi.IDFromURL(chain.URL); ok {
			d.EvolutionChain.ID = &id
		}
	}
	if d.GenerationID != nil {
		if region, ok := RegionForGeneration(*d.GenerationID); ok {
			d.RegionName = &region
		}
	}
	return d
}

// MapGrouping builds the metadata of one generation.
func MapGrouping(g *pokeapi.Generation) Grouping {
	id := g.ID
	if id <= 0 {
		id, _ = GenerationID(g.Name)
	}

	out := Grouping{
		ID:          id,
		Name:        g.Name,
		DisplayName: GenerationDisplayName(id, g.Name),
		MemberCount: len(g.PokemonSpecies),
	}
	for _, n := range g.Names {
		if n.Language.Name == language && n.Name != "" {
			out.DisplayName = n.Name
			break
		}
	}

	if g.MainRegion != nil && g.MainRegion.Name != "" {
		region := g.MainRegion.Name
		out.Region = &region
	} else if region, ok := RegionForGeneration(id); ok {
		out.Region = &region
	}
	return out
}

// MapCategory builds the metadata of one type from its list reference.
// References without a parsable id are rejected.
func MapCategory(ref pokeapi.NamedResource) (Category, bool) {
	id, ok := ref.ID()
	if !ok || ref.Name == "" {
		return Category{}, false
	}
	return Category{
		ID:          id,
		Name:        ref.Name,
		DisplayName: titleCase(ref.Name),
	}, true
}

func typeNames(slots []pokeapi.TypeSlot) []string {
	names := make([]string, 0, len(slots))
	for _, t := range slots {
		names = append(names, t.Type.Name)
	}
	return names
}

func generationOf(species *pokeapi.Species) *int {
	if species.Generation == nil {
		return nil
	}
	if id, ok := GenerationID(species.Generation.Name); ok {
		return &id
	}
	if id, ok := species.Generation.ID(); ok {
		return &id
	}
	return nil
}

func englishGenus(genera []pokeapi.Genus) string {
	for _, g := range genera {
		if g.Language.Name == language {
			return strings.TrimSpace(g.Genus)
		}
	}
	return ""
}

// englishFlavorText returns the latest English entry with whitespace collapsed.
// Entries are ordered by game version upstream.
func englishFlavorText(entries []pokeapi.FlavorText) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Language.Name != language {
			continue
		}
		if text := strings.Join(strings.Fields(entries[i].FlavorText), " "); text != "" {
			return text
		}
	}
	return ""
}

func femaleRatio(rate *int) *float64 {
	if rate == nil || *rate < 0 || *rate > 8 {
		return nil
	}
	ratio := float64(*rate) / 8
	return &ratio
}

func resourceName(r *pokeapi.NamedResource) *string {
	if r == nil || r.Name == "" {
		return nil
	}
	name := r.Name
	return &name
}

func firstURL(candidates ...*string) *string {
	for _, c := range candidates {
		if u := secureURL(c); u != nil {
			return u
		}
	}
	return nil
}

// secureURL upgrades http URLs to https and drops empty ones.
func secureURL(u *string) *string {
	if u == nil {
		return nil
	}
	s := strings.TrimSpace(*u)
	if s == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(s, "http://"); ok {
		s = "https://" + rest
	}
	return &s
}
