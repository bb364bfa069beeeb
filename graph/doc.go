// Package graph adapts the GraphQL execution context for the resolver:
// it collects the requested field selections that drive query planning
// and projection, and presents the curator error taxonomy as GraphQL
// errors with machine-readable extension codes.
package graph
