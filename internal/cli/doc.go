// Package cli implements the pipetop command-line interface.
//
// The root command resolves the configuration once (file, PIPETOP_*
// environment, then flags), builds the API client, the render surface and
// the dashboard controller from it, and runs the session.
//
//	pipetop [--url URL]   - Monitor a pipeline
//	pipetop config        - Print the resolved configuration
//	pipetop version       - Print version information
//
// Fatal errors are printed as a single line on stderr and mapped to the
// process exit status by errors.ExitCode.
package cli
