package domain

// Context holds the structured data threaded through a flow instance.
// The engine treats it as opaque and only ever shallow-merges into it.
type Context map[string]any

// ContextUpdate computes a partial context from the current one.
// The returned keys are shallow-merged into the context; nil means no change.
type ContextUpdate func(Context) Context

// Set returns a ContextUpdate that merges the given values regardless of the current context.
func Set(values Context) ContextUpdate {
	return func(Context) Context {
		return values
	}
}

// Clone returns a shallow copy. A nil context clones to an empty one.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge returns a new context with patch shallow-merged over c.
// Neither c nor patch is modified.
func (c Context) Merge(patch Context) Context {
	out := c.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Apply runs update against c and merges the result.
// A nil update returns c unchanged (same map).
func (c Context) Apply(update ContextUpdate) Context {
	if update == nil {
		return c
	}
	return c.Merge(update(c.Clone()))
}
