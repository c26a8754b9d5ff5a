package ingest

import (
	"fmt"

	"github.com/docserver/docserver/internal/docerrors"
)

func errRequired(field string) error {
	return docerrors.Validation(fmt.Sprintf("%s is required", field), nil)
}

func errMutuallyExclusive(a, b string) error {
	return docerrors.Validation(fmt.Sprintf("%s and %s are mutually exclusive", a, b), nil)
}
