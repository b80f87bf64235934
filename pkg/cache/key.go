package cache

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultPrefix is the versioned namespace of all keys.
const DefaultPrefix = "pokedex:v1"

// ErrUnknownKey is returned by Resolve for keys outside the known namespaces.
var ErrUnknownKey = errors.New("unknown cache key")

// Short key names, relative to the prefix.
const (
	NameSummary    = "summary"
	NameGroupings  = "groupings"
	NameCategories = "categories"
	nsDetail       = "detail"
	nsAlias        = "alias"
	nsLock         = "lock"
)

var segmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Keys builds cache keys under a prefix.
//
// Format: <prefix>:<name>[:<segment>]
//
// Example:
//
//	pokedex:v1:detail:25
type Keys struct {
	prefix string
}

// NewKeys creates a key builder. An empty prefix selects DefaultPrefix.
func NewKeys(prefix string) Keys {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{prefix: prefix}
}

// Prefix returns the namespace prefix.
func (k Keys) Prefix() string {
	return k.prefix
}

func (k Keys) join(parts ...string) string {
	return k.prefix + ":" + strings.Join(parts, ":")
}

// Summary is the key of the summary list.
func (k Keys) Summary() string { return k.join(NameSummary) }

// Groupings is the key of the generation list.
func (k Keys) Groupings() string { return k.join(NameGroupings) }

// Categories is the key of the type list.
func (k Keys) Categories() string { return k.join(NameCategories) }

// Detail is the key of a single entity, addressed by normalized key.
func (k Keys) Detail(entity string) string { return k.join(nsDetail, entity) }

// Alias maps an entity name to its numeric key.
func (k Keys) Alias(name string) string { return k.join(nsAlias, name) }

// Lock returns the lock key guarding cacheKey.
func (k Keys) Lock(cacheKey string) string {
	return k.join(nsLock, k.trim(cacheKey))
}

// DetailEntity returns the entity segment of a detail key.
func (k Keys) DetailEntity(cacheKey string) (string, bool) {
	rest, ok := strings.CutPrefix(k.trim(cacheKey), nsDetail+":")
	return rest, ok && rest != ""
}

func (k Keys) trim(cacheKey string) string {
	return strings.TrimPrefix(cacheKey, k.prefix+":")
}

// Resolve turns an administrative key into a full cache key. It accepts the
// full key or its short form ("summary", "groupings", "categories",
// "detail:<k>", "alias:<name>").
func (k Keys) Resolve(raw string) (string, error) {
	short := k.trim(strings.ToLower(strings.TrimSpace(raw)))
	switch short {
	case NameSummary, NameGroupings, NameCategories:
		return k.join(short), nil
	}

	ns, segment, ok := strings.Cut(short, ":")
	if !ok || (ns != nsDetail && ns != nsAlias) || !segmentPattern.MatchString(segment) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, raw)
	}
	return k.join(ns, segment), nil
}
