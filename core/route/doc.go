// Package route defines the data model shared by the route-stack synchronizer.
//
// Allowed here:
// - route records, items, templates and the template registry
// - the opaque navigator handle and route identifiers
// - typed option values (colors, images, nav bar items) and the error taxonomy
//
// Not allowed here:
// - stack mutation, command sequencing or peer I/O
package route
