// Package agent exposes bist as an MCP (Model Context Protocol) tool
// server, so assistants can run test files and inspect demos.
//
// Tools:
//
//   - bist_run: run files, directories or globs and return the results as JSON
//   - bist_explain: return the legend of the diagnostic markers
//   - bist_demo: list the demos of a file, or run one of them
//
// Example usage:
//
//	srv := agent.NewServer(app.FromConfig(config.GetDefaultConfig()), "1.0.0")
//	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// The server speaks MCP over stdio; logs must not go to stdout while it
// runs.
package agent
