package mcp

import (
	"fmt"
	"strings"

	"github.com/docserver/docserver/internal/query"
	"github.com/docserver/docserver/internal/store"
)

// renderResolveResult formats a ResolveLibraryID result as the markdown
// TextContent block spec §4.F.2 wraps resolve-library-id's output in.
func renderResolveResult(r *query.ResolveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected: %s (%s), score %.3f", r.Best.Name, r.Best.Context7ID, r.Best.Score)
	for _, alt := range r.Alternatives {
		fmt.Fprintf(&b, "\nAlternative: %s (%s), score %.3f", alt.Name, alt.Context7ID, alt.Score)
	}
	return b.String()
}

// renderLibrary formats a library record as the TextContent block
// fetch-library-docs returns.
func renderLibrary(lib *store.Library) string {
	return fmt.Sprintf("%s (%s)\n%s", lib.Name, lib.Context7ID, lib.ShortDescription)
}
