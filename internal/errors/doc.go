// Package errors provides structured, actionable error messages for Easel.
//
// The errors package implements a comprehensive error system that:
//   - Shows exact source locations in diagram files (file, line, column)
//   - Explains what went wrong in plain language
//   - Suggests how to fix issues
//   - Links to documentation for deeper understanding
//
// # Error Categories
//
// Errors are organized into categories:
//   - validation: Bad caller input (diagram IDs, formats, arguments)
//   - render: External renderer failures (missing binary, parse errors)
//   - workspace: Diagram store errors (missing sources or artifacts)
//   - preview: Preview server errors (port exhaustion, unknown sessions)
//   - config: easel.json problems
//   - publish: Upload failures
//
// # Error Codes
//
// Each error has a unique code (e.g., "E001") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Usage
//
//	err := errors.New("E021").
//	    WithLocation("flow.mmd", 3, 0).
//	    WithSuggestion("Check the arrow syntax on line 3")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E021: Render failed
//	//
//	//   flow.mmd:3
//	//
//	//      2 │ graph TD
//	//    → 3 │   A --> > B
//	//      4 │   B --> C
//	//
//	//   Hint: Check the arrow syntax on line 3
//	//
//	//   Learn more: https://easel.dev/docs/errors/E021
package errors
