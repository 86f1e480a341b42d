// Package api embeds the MCP tool contract served by backlog-mcp.
package api

import _ "embed"

// ToolsContract is the tools.yaml contract, parsed at startup and served
// verbatim at /api/tools.yaml.
//
//go:embed tools.yaml
var ToolsContract []byte
