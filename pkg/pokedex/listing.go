package pokedex

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
)

// SummaryList returns the summary of every entity up to MaxEntityID.
func (a *Aggregator) SummaryList(ctx context.Context, forceRefresh bool) (Result[[]Summary], error) {
	data, status, err := a.readThrough(ctx, request{
		kind:       "summary",
		key:        a.keys.Summary(),
		force:      forceRefresh,
		background: a.cfg.BackgroundListRebuild,
		build:      a.buildSummaryList,
	})
	return decode[[]Summary]("summary", data, status, err)
}

// Groupings returns the metadata of every generation.
func (a *Aggregator) Groupings(ctx context.Context, forceRefresh bool) (Result[[]Grouping], error) {
	data, status, err := a.readThrough(ctx, request{
		kind:       "groupings",
		key:        a.keys.Groupings(),
		force:      forceRefresh,
		background: a.cfg.BackgroundListRebuild,
		build:      a.buildGroupings,
	})
	return decode[[]Grouping]("groupings", data, status, err)
}

// Categories returns the metadata of every type.
func (a *Aggregator) Categories(ctx context.Context, forceRefresh bool) (Result[[]Category], error) {
	data, status, err := a.readThrough(ctx, request{
		kind:       "categories",
		key:        a.keys.Categories(),
		force:      forceRefresh,
		background: a.cfg.BackgroundListRebuild,
		build:      a.buildCategories,
	})
	return decode[[]Category]("categories", data, status, err)
}

func (a *Aggregator) buildSummaryList(ctx context.Context, _ claimFunc) (*built, error) {
	ids := make([]int, a.cfg.MaxEntityID)
	for i := range ids {
		ids[i] = i + 1
	}

	summaries, err := fetchAll(ctx, a.cfg.Fetch, a.logger, "pokemon", ids, a.fetchSummary)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: no entity could be fetched", ErrTransient)
	}

	list := make([]Summary, 0, len(summaries))
	for _, id := range ids {
		if s, ok := summaries[id]; ok {
			list = append(list, s)
		}
	}
	return &built{value: list}, nil
}

func (a *Aggregator) fetchSummary(ctx context.Context, id int) (Summary, error) {
	p, err := a.upstream.Pokemon(ctx, strconv.Itoa(id))
	if err != nil {
		return Summary{}, err
	}
	species, err := a.species(ctx, p)
	if err != nil {
		return Summary{}, err
	}
	return MapSummary(p, species), nil
}

func (a *Aggregator) buildGroupings(ctx context.Context, _ claimFunc) (*built, error) {
	refs, err := a.upstream.Generations(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		id, ok := ref.ID()
		if !ok {
			id, ok = GenerationID(ref.Name)
		}
		if !ok {
			a.logger.Warn().Str("name", ref.Name).Msg("Skipping generation without id")
			continue
		}
		ids = append(ids, id)
	}

	generations, err := fetchAll(ctx, a.cfg.Fetch, a.logger, "generation", ids,
		func(ctx context.Context, id int) (*pokeapi.Generation, error) {
			return a.upstream.Generation(ctx, strconv.Itoa(id))
		})
	if err != nil {
		return nil, err
	}
	if len(generations) == 0 {
		return nil, fmt.Errorf("%w: no generation could be fetched", ErrTransient)
	}

	list := make([]Grouping, 0, len(generations))
	for id, g := range generations {
		grouping := MapGrouping(g)
		if grouping.ID <= 0 {
			grouping.ID = id
		}
		list = append(list, grouping)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return &built{value: list}, nil
}

func (a *Aggregator) buildCategories(ctx context.Context, _ claimFunc) (*built, error) {
	refs, err := a.upstream.Types(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]Category, 0, len(refs))
	for _, ref := range refs {
		c, ok := MapCategory(ref)
		if !ok {
			a.logger.Warn().Str("name", ref.Name).Str("url", ref.URL).Msg("Skipping type without id")
			continue
		}
		list = append(list, c)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: upstream returned no types", ErrTransient)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return &built{value: list}, nil
}
