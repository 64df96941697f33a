// Package provider describes where each supported coding assistant expects
// installed artifacts.
//
// A [Target] holds path templates per scope. "{dir}" expands to the
// provider's base directory, which configuration may override, and "{name}"
// to the item name. Templates are relative to the scope root: the project
// directory for project installs, the home directory for global installs.
// An empty template means the provider has no location for that type in that
// scope.
//
// The [Catalog] is an immutable value; overrides produce a new catalog.
package provider
