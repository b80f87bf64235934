package pokeapi_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/pokedex-api/internal/testutil"
	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
)

// newTestClient creates a client against mock with millisecond backoff.
func newTestClient(t *testing.T, mock *testutil.MockPokeAPI) *pokeapi.Client {
	t.Helper()

	cfg := pokeapi.DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.UserAgent = "pokedex-api-test/1.0"
	cfg.Timeout = 2 * time.Second
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond

	client, err := pokeapi.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*pokeapi.Config)
		expectError string
	}{
		{name: "valid config", mutate: func(*pokeapi.Config) {}},
		{
			name:        "empty base url",
			mutate:      func(c *pokeapi.Config) { c.BaseURL = " " },
			expectError: "base url is required",
		},
		{
			name:        "relative base url",
			mutate:      func(c *pokeapi.Config) { c.BaseURL = "pokeapi.co/api" },
			expectError: "invalid base url",
		},
		{
			name:        "empty user agent",
			mutate:      func(c *pokeapi.Config) { c.UserAgent = "" },
			expectError: "user-agent is required",
		},
		{
			name:        "negative retries",
			mutate:      func(c *pokeapi.Config) { c.MaxRetries = -1 },
			expectError: "max_retries must be >= 0 (got -1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := pokeapi.DefaultConfig()
			tt.mutate(&cfg)

			client, err := pokeapi.New(cfg)
			if tt.expectError != "" {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.expectError) {
					t.Errorf("Error = %q, want it to contain %q", err, tt.expectError)
				}
				return
			}
			if err != nil || client == nil {
				t.Errorf("New() = %v, %v", client, err)
			}
		})
	}
}

func TestClient_Pokemon(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.AddPokemon(testutil.Pikachu())

	client := newTestClient(t, mock)

	p, err := client.Pokemon(context.Background(), "pikachu")
	if err != nil {
		t.Fatalf("Pokemon() error = %v", err)
	}
	if p.ID != 25 || p.Name != "pikachu" {
		t.Errorf("Pokemon = %d/%s, want 25/pikachu", p.ID, p.Name)
	}
	if len(p.Types) != 1 || p.Types[0].Type.Name != "electric" {
		t.Errorf("Types = %+v", p.Types)
	}
	if p.Sprites.Other.OfficialArtwork.FrontDefault == nil {
		t.Error("official artwork not decoded")
	}
	if got := mock.GetLastUserAgent(); got != "pokedex-api-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestClient_SpeciesByURL(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.AddPokemon(testutil.Pikachu())

	client := newTestClient(t, mock)
	ctx := context.Background()

	p, err := client.Pokemon(ctx, "25")
	if err != nil {
		t.Fatalf("Pokemon() error = %v", err)
	}

	species, err := client.Species(ctx, p.Species.URL)
	if err != nil {
		t.Fatalf("Species() error = %v", err)
	}
	if species.ID != 25 || species.GenderRate == nil || *species.GenderRate != 4 {
		t.Errorf("Species = %+v", species)
	}
	if mock.GetPathCount("/pokemon-species/25") != 1 {
		t.Errorf("species path count = %d, want 1", mock.GetPathCount("/pokemon-species/25"))
	}
}

func TestClient_SpeciesRejectsForeignReference(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()

	client := newTestClient(t, mock)

	refs := []string{
		"https://evil.example/api/v2/pokemon/25/",
		"https://pokeapi.co/",
		"",
		"a/b",
	}
	for _, ref := range refs {
		_, err := client.Species(context.Background(), ref)
		if !errors.Is(err, pokeapi.ErrPermanent) {
			t.Errorf("Species(%q) error = %v, want ErrPermanent", ref, err)
		}
	}
	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("RequestCount = %d, want 0", n)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		response      testutil.MockResponse
		want          error
		expectedCalls int
	}{
		{"404 is not found", testutil.MockResponse{StatusCode: http.StatusNotFound}, pokeapi.ErrNotFound, 1},
		{"400 is permanent", testutil.NewBadRequestResponse(), pokeapi.ErrPermanent, 1},
		{"500 is transient after retries", testutil.NewServerErrorResponse(), pokeapi.ErrTransient, 3},
		{"429 is transient after retries", testutil.NewRateLimitResponse(), pokeapi.ErrTransient, 3},
		{"bad json is permanent", testutil.NewJSONResponse(`{"id": "x"`), pokeapi.ErrPermanent, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockPokeAPI()
			defer mock.Close()
			mock.SetResponse("/pokemon/1", tt.response)

			client := newTestClient(t, mock)

			_, err := client.Pokemon(context.Background(), "1")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if got := mock.GetPathCount("/pokemon/1"); got != tt.expectedCalls {
				t.Errorf("calls = %d, want %d", got, tt.expectedCalls)
			}
		})
	}
}

func TestClient_RetryRecovers(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetSequence("/type",
		testutil.NewServerErrorResponse(),
		testutil.NewJSONResponse(`{"count":2,"next":null,"results":[
			{"name":"normal","url":"https://pokeapi.co/api/v2/type/1/"},
			{"name":"fighting","url":"https://pokeapi.co/api/v2/type/2/"}]}`),
	)

	client := newTestClient(t, mock)

	types, err := client.Types(context.Background())
	if err != nil {
		t.Fatalf("Types() error = %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("len(types) = %d, want 2", len(types))
	}
	if id, ok := types[1].ID(); !ok || id != 2 {
		t.Errorf("types[1].ID() = %d, %v", id, ok)
	}
	if got := mock.GetPathCount("/type"); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestClient_Generations(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetJSON("/generation", pokeapi.NamedResourceList{
		Count: 1,
		Results: []pokeapi.NamedResource{
			{Name: "generation-i", URL: mock.URL() + "/generation/1/"},
		},
	})
	mock.SetJSON("/generation/1", testutil.GenerationFixture(mock.URL(), 1, "kanto", 151))

	client := newTestClient(t, mock)
	ctx := context.Background()

	refs, err := client.Generations(ctx)
	if err != nil {
		t.Fatalf("Generations() error = %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "generation-i" {
		t.Fatalf("refs = %+v", refs)
	}

	g, err := client.Generation(ctx, "1")
	if err != nil {
		t.Fatalf("Generation() error = %v", err)
	}
	if g.MainRegion == nil || g.MainRegion.Name != "kanto" || len(g.PokemonSpecies) != 151 {
		t.Errorf("Generation = %+v", g)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetResponse("/pokemon/1", testutil.MockResponse{StatusCode: http.StatusOK, Delay: 5 * time.Second})

	client := newTestClient(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Pokemon(ctx, "1")
	if err == nil {
		t.Fatal("Expected error on cancelled context")
	}
	if !errors.Is(err, pokeapi.ErrTransient) {
		t.Errorf("error = %v, want transient", err)
	}
}

func TestIDFromURL(t *testing.T) {
	tests := []struct {
		raw    string
		wantID int
		wantOK bool
	}{
		{"https://pokeapi.co/api/v2/pokemon-species/25/", 25, true},
		{"https://pokeapi.co/api/v2/type/18", 18, true},
		{"https://pokeapi.co/api/v2/type/shadow/", 0, false},
		{"https://pokeapi.co/api/v2/type/0/", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		id, ok := pokeapi.IDFromURL(tt.raw)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("IDFromURL(%q) = %d, %v; want %d, %v", tt.raw, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
