// Package sym defines the glyphs orbits uses in CLI output and log fields.
// They are stable across commands so output stays greppable.
package sym

// Entity glyphs.
const (
	Orbit  = "◉" // an orbit (versioned entity)
	Sphere = "◎" // a sphere (container of orbits)
	Tree   = "⌥" // a hierarchy view
)

// Operation glyphs.
const (
	Create  = "+" // record created
	Update  = "↻" // record superseded
	Delete  = "✕" // original tombstoned
	Resolve = "→" // version chain walk
	Search  = "⌕" // prefix search
	Edge    = "⇢" // secondary index edge
)

// System infrastructure symbols.
const (
	AM = "≡" // configuration
	DB = "⊔" // database/storage layer
)

// ForKind returns the entity glyph for a record kind.
func ForKind(kind string) string {
	switch kind {
	case "orbit":
		return Orbit
	case "sphere":
		return Sphere
	default:
		return "?"
	}
}
