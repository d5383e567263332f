/*
Package dsl provides a fluent Go builder for flow definitions.

It is an alternative to JSON or YAML files when flows are declared in code,
and the only way to attach resolvers and migrations in one place. The plain
part is validated exactly like a loaded definition.

Example usage:

	flow, err := dsl.New("onboarding").
		Version("2").
		Add("welcome").Next("plan").
		Add("plan").OneOf("team", "solo").
		Resolve(func(ctx domain.Context) string {
			if ctx["seats"] == 1 {
				return "solo"
			}
			return "team"
		}).
		Add("team").Next("done").
		Add("solo").Next("done").
		Add("done").Terminal().
		Build()

The first added step is the start step unless Start is called.
*/
package dsl
