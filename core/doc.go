// Package core provides the small set of shared types every other package
// speaks:
//
//   - Content and its Part variants (text, data, function call, function
//     response) exchanged with models
//   - ToolContext, the scoped surface handed to tool implementations
//   - ModelLimiter, which bounds model calls in a tool loop
//   - NewID for call and tool-call identifiers
//
// It has no knowledge of strategies, providers or toolkits.
package core
