// Package service drives the index workflow: connect to an index, embed documents,
// upsert vectors, read statistics and run a similarity query.
//
// Each stage is exposed on Service so it can be embedded into other programs
// (the CLI and the MCP server use it) and Run chains them into one report.
package service
