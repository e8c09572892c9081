package registry

import (
	"fmt"
	"time"
)

func now() time.Time {
	return time.Now().UTC()
}

func errNotFound(id ProcID) error {
	return fmt.Errorf("%w: process %d", ErrNotFound, id)
}
