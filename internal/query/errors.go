package query

import "github.com/docserver/docserver/internal/docerrors"

func errLibraryNotFound(ref string, cause error) error {
	return docerrors.NotFound("library not found: "+ref, cause)
}
