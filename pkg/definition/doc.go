// Package definition validates flow definitions and decodes them from raw data.
//
// Validation runs once, when a definition is created, and checks every
// statically declared reference: the start step and every string or list
// "next" entry must name a declared step. Computed transitions and resolvers
// are code, so their destinations cannot be verified ahead of time and are
// exempt.
//
// Definitions can be built from Go values (Define), loosely typed maps
// (Decode) or JSON/YAML documents (ParseJSON, ParseYAML):
//
//	def, err := definition.ParseYAML([]byte(`
//	id: onboarding
//	start: welcome
//	steps:
//	  welcome: {next: profile}
//	  profile: {next: [team, solo]}
//	  team: {}
//	  solo: {}
//	`))
package definition
