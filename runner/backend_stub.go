//go:build !occa

package runner

import "fmt"

// Built without the occa tag: there is no device runtime linked in. Context
// creation reports ErrNoDevice and every operation fails fast with an error
// naming the operation.
func newBackend(deviceProps string) (deviceBackend, error) {
	return nil, fmt.Errorf("%w: built without OCCA support (use -tags occa)", ErrNoDevice)
}
