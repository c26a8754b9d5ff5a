package rest

import "github.com/google/uuid"

func newLibraryID() string {
	return "lib-" + uuid.NewString()
}
