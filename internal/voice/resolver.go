// Package voice turns character hints into canonical voice ids and cleans
// text before it is handed to the synthesis backend.
package voice

import (
	log "log/slog"
	"maps"
	"strings"
)

// Resolve maps a character hint to a canonical voice id.
//
// An empty hint means defaultCharacter. Hints carrying CanonicalPrefix pass
// through, known aliases are mapped, and anything else falls back to the
// default character (mapped when it is an alias, verbatim otherwise).
func Resolve(hint, defaultCharacter string, aliases AliasTable) string {
	if hint == "" {
		hint = defaultCharacter
	}

	if strings.HasPrefix(hint, CanonicalPrefix) {
		return hint
	}

	if id, ok := aliases.Lookup(hint); ok {
		return id
	}

	if id, ok := aliases.Lookup(defaultCharacter); ok {
		return id
	}

	return defaultCharacter
}

// Resolver binds an alias table and a default character. It is safe for
// concurrent use; the table is copied on construction and never written.
type Resolver struct {
	aliases          AliasTable
	defaultCharacter string
}

// NewResolver copies aliases. A nil table means the built-in one; an empty
// default means FallbackVoice.
func NewResolver(aliases AliasTable, defaultCharacter string) *Resolver {
	if aliases == nil {
		aliases = builtinAliases
	}
	defaultCharacter = strings.TrimSpace(defaultCharacter)
	if defaultCharacter == "" {
		defaultCharacter = FallbackVoice
	}
	return &Resolver{
		aliases:          maps.Clone(aliases),
		defaultCharacter: defaultCharacter,
	}
}

func (r *Resolver) DefaultCharacter() string {
	return r.defaultCharacter
}

// Resolve never returns an empty string.
func (r *Resolver) Resolve(hint string) string {
	hint = strings.TrimSpace(hint)
	id := Resolve(hint, r.defaultCharacter, r.aliases)

	switch {
	case hint == "":
		log.Debug("Voice defaulted", "default", r.defaultCharacter, "voice", id)
	case id == hint:
		log.Debug("Voice passed through", "voice", id)
	case r.aliases[hint] == id:
		log.Debug("Voice alias mapped", "alias", hint, "voice", id)
	default:
		log.Debug("Unknown voice alias, using default", "alias", hint, "default", r.defaultCharacter, "voice", id)
	}
	return id
}

// Known reports whether name is an alias or a canonical id.
func (r *Resolver) Known(name string) bool {
	if strings.HasPrefix(name, CanonicalPrefix) {
		return true
	}
	_, ok := r.aliases[name]
	return ok
}
