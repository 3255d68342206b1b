//go:build !linux && !darwin

package extsort

import "errors"

func physicalMemory() (uint64, error) {
	return 0, errors.New("extsort: physical memory size not available on this platform")
}
