// Package kinds registers the importable record kinds with core.
//
// Import it for side effects:
//
//	import _ "github.com/JonMunkholm/bulkimport/internal/core/kinds"
package kinds
