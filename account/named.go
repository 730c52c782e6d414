package account

// =============================================================================
// NAMED ACCOUNT - An arbitrary server-side account addressed by name
// =============================================================================

// NamedAccount holds funds that belong to no player: server treasuries, shop
// floats, tax sinks. Identity is the name alone.
type NamedAccount struct {
	*Base
	Name string
}

// NewNamedAccount creates a named account. The identity key is "named:<name>".
func NewNamedAccount(name string, gw Gateway, pool *Pool, opts ...Option) *NamedAccount {
	a := &NamedAccount{
		Base: newBase(KindNamed, NamedKey(name), gw, pool, opts...),
		Name: name,
	}
	a.self = a
	return a
}

// NamedKey returns the identity key for a named account.
func NamedKey(name string) string {
	return "named:" + name
}
