package rules

// EntrypointResolver looks up externally installed named functions. It is
// the policy engine's view of the host's plug-in discovery: given the
// policy's entrypoint group and an unresolved name, it returns the
// function to bind, or ok=false when no entrypoint provides one.
//
// Resolutions (including misses) are memoized on the Policy for its
// lifetime, so implementations may be arbitrarily slow on the first
// lookup.
type EntrypointResolver interface {
	Resolve(group, name string) (*Func, bool)
}

// EntrypointResolverFunc adapts a function to the EntrypointResolver
// interface.
type EntrypointResolverFunc func(group, name string) (*Func, bool)

// Resolve implements EntrypointResolver.
func (f EntrypointResolverFunc) Resolve(group, name string) (*Func, bool) {
	return f(group, name)
}
