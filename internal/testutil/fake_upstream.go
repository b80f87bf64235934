package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
)

// FakeBaseURL is the base of resource URLs handed out by FakeUpstream.
const FakeBaseURL = "https://pokeapi.test/api/v2"

// FakeUpstream is a scripted in-memory PokeAPI.
//
// Calls are recorded by name ("pokemon:25", "species:25", "generations",
// "generation:1", "types"). Failures can be injected per call name, and
// Block holds every call until Unblock so tests can observe in-flight rebuilds.
type FakeUpstream struct {
	mu          sync.Mutex
	pokemon     map[string]*pokeapi.Pokemon
	species     map[string]*pokeapi.Species
	generations map[string]*pokeapi.Generation
	genRefs     []pokeapi.NamedResource
	types       []pokeapi.NamedResource
	failures    map[string]error
	calls       map[string]int
	gate        chan struct{}
	holds       map[string]chan struct{}
	entered     chan string
}

// NewFakeUpstream creates an empty fake.
func NewFakeUpstream() *FakeUpstream {
	return &FakeUpstream{
		pokemon:     make(map[string]*pokeapi.Pokemon),
		species:     make(map[string]*pokeapi.Species),
		generations: make(map[string]*pokeapi.Generation),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
		holds:       make(map[string]chan struct{}),
		entered:     make(chan string, 4096),
	}
}

// AddPokemon registers a fixture, addressable by id and name.
func (f *FakeUpstream) AddPokemon(fixture PokemonFixture) {
	f.SetRecords(fixture.Pokemon(FakeBaseURL), fixture.Species(FakeBaseURL))
}

// SetRecords registers raw records, addressable by id and name. species may be nil.
func (f *FakeUpstream) SetRecords(p *pokeapi.Pokemon, species *pokeapi.Species) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pokemon[strconv.Itoa(p.ID)] = p
	f.pokemon[p.Name] = p
	if species != nil {
		f.species[strconv.Itoa(species.ID)] = species
		f.species[species.Name] = species
	}
}

// AddGeneration registers a generation with members species.
func (f *FakeUpstream) AddGeneration(id int, region string, members int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := GenerationFixture(FakeBaseURL, id, region, members)
	f.generations[strconv.Itoa(id)] = g
	f.generations[g.Name] = g
	f.genRefs = append(f.genRefs, pokeapi.NamedResource{
		Name: g.Name,
		URL:  fmt.Sprintf("%s/generation/%d/", FakeBaseURL, id),
	})
}

// SetTypes registers the type list; ids are assigned in order from 1.
func (f *FakeUpstream) SetTypes(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.types = f.types[:0]
	for i, name := range names {
		f.types = append(f.types, pokeapi.NamedResource{
			Name: name,
			URL:  fmt.Sprintf("%s/type/%d/", FakeBaseURL, i+1),
		})
	}
}

// Fail makes every call named call return err until Recover.
func (f *FakeUpstream) Fail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[call] = err
}

// Recover removes an injected failure.
func (f *FakeUpstream) Recover(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, call)
}

// Calls returns how often call was made.
func (f *FakeUpstream) Calls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

// TotalCalls returns the number of calls of any kind.
func (f *FakeUpstream) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Block holds every subsequent call until Unblock.
func (f *FakeUpstream) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

// Unblock releases blocked and held calls.
func (f *FakeUpstream) Unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
	for call, hold := range f.holds {
		close(hold)
		delete(f.holds, call)
	}
}

// Hold blocks calls named call until Release, leaving other calls running.
func (f *FakeUpstream) Hold(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.holds[call]; !ok {
		f.holds[call] = make(chan struct{})
	}
}

// Release lets held calls named call proceed.
func (f *FakeUpstream) Release(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hold, ok := f.holds[call]; ok {
		close(hold)
		delete(f.holds, call)
	}
}

// Entered receives the name of every call as it starts.
func (f *FakeUpstream) Entered() <-chan string {
	return f.entered
}

// enter records call and waits at the gate.
func (f *FakeUpstream) enter(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls[call]++
	gate := f.gate
	if hold, ok := f.holds[call]; ok {
		gate = hold
	}
	f.mu.Unlock()

	select {
	case f.entered <- call:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[call]
}

// Pokemon implements the upstream interface.
func (f *FakeUpstream) Pokemon(ctx context.Context, key string) (*pokeapi.Pokemon, error) {
	if err := f.enter(ctx, "pokemon:"+key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pokemon[key]; ok {
		return p, nil
	}
	return nil, NotFoundError("/pokemon/{key}")
}

// Species implements the upstream interface.
func (f *FakeUpstream) Species(ctx context.Context, ref string) (*pokeapi.Species, error) {
	key := lastSegment(ref)
	if err := f.enter(ctx, "species:"+key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.species[key]; ok {
		return s, nil
	}
	return nil, NotFoundError("/pokemon-species/{key}")
}

// Generations implements the upstream interface.
func (f *FakeUpstream) Generations(ctx context.Context) ([]pokeapi.NamedResource, error) {
	if err := f.enter(ctx, "generations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pokeapi.NamedResource(nil), f.genRefs...), nil
}

// Generation implements the upstream interface.
func (f *FakeUpstream) Generation(ctx context.Context, key string) (*pokeapi.Generation, error) {
	if err := f.enter(ctx, "generation:"+key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.generations[key]; ok {
		return g, nil
	}
	return nil, NotFoundError("/generation/{key}")
}

// Types implements the upstream interface.
func (f *FakeUpstream) Types(ctx context.Context) ([]pokeapi.NamedResource, error) {
	if err := f.enter(ctx, "types"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pokeapi.NamedResource(nil), f.types...), nil
}
