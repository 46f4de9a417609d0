// Package originapi implements the small REST contract a relay uses to
// discover which peer relay currently publishes a namespace: get/set/delete
// origin, keyed by namespace, valued by the owning relay's dial URL.
//
// This stands in for moq-relay's external moq-api dependency, which isn't
// part of the retrieval pack. Directory is an in-process implementation
// suitable for a single-node deployment or tests; Client talks to any HTTP
// server implementing the same contract, in-process or not.
package originapi
