package natives

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRefName = errors.New("invalid reference name")

// RefName formats the canonical name of reference id owned by resource.
// instance distinguishes successive loads of the same resource.
func RefName(resource string, instance, id uint32) string {
	return resource + ":" + strconv.FormatUint(uint64(instance), 10) + ":" + strconv.FormatUint(uint64(id), 10)
}

// ParseRefName splits a name produced by RefName. The resource may itself
// contain colons.
func ParseRefName(name string) (resource string, instance, id uint32, err error) {
	idAt := strings.LastIndexByte(name, ':')
	if idAt <= 0 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidRefName, name)
	}
	instAt := strings.LastIndexByte(name[:idAt], ':')
	if instAt <= 0 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidRefName, name)
	}
	inst, err := strconv.ParseUint(name[instAt+1:idAt], 10, 32)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q: instance: %v", ErrInvalidRefName, name, err)
	}
	ref, err := strconv.ParseUint(name[idAt+1:], 10, 32)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q: id: %v", ErrInvalidRefName, name, err)
	}
	return name[:instAt], uint32(inst), uint32(ref), nil
}

// Canonicalizer returns a wasmhost.Canonicalizer naming references of one
// resource instance.
func Canonicalizer(resource string, instance uint32) func(ref uint32) (string, error) {
	return func(ref uint32) (string, error) {
		if ref == 0 {
			return "", fmt.Errorf("%w: null reference", ErrInvalidRefName)
		}
		return RefName(resource, instance, ref), nil
	}
}
