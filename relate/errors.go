package relate

import "errors"

// ErrDegenerate and ErrSelfIntersecting are returned by the reader when a
// way or relation geometry cannot be assembled; the object is logged and
// dropped. The predicates in geometry.go return plain booleans.
var (
	ErrDegenerate      = errors.New("relate: geometry has fewer than three unique vertices")
	ErrSelfIntersecting = errors.New("relate: geometry self-intersects in a way the predicate cannot evaluate")
)

// ConfigError marks a configuration inconsistency found before staging
// begins. It is always fatal.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "relate: invalid configuration for " + e.Field + ": " + e.Msg
}
