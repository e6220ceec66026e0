// Package launch merges layered launch configuration and renders the result
// for the tools that consume it.
//
// Three layers are merged with ascending precedence: the plugin-wide
// default, the environment-specific default, and the usage-context
// override. Within a layer every usage context may be overridden at most
// once. Across layers the environment layer's override for a context wins
// over the plugin layer's override for the same context.
//
// Argument maps follow one convention throughout: a key present with an
// empty value is an explicit empty value and replaces the lower layer's
// value; an absent key inherits it.
package launch
