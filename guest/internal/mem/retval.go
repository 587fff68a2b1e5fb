package mem

// DefaultRetvalSize is the initial capacity of the native return buffer.
const DefaultRetvalSize = 256

// retval receives native results. The host replaces it with a larger buffer
// through __cfx_extend_retval_buffer when a result does not fit.
var retval = make([]byte, DefaultRetvalSize)

// Retval returns the current native return buffer.
func Retval() []byte {
	return retval
}

// ExtendRetval replaces the return buffer with one of at least size bytes
// and returns its address.
func ExtendRetval(size uint32) uint32 {
	if size > uint32(len(retval)) {
		retval = make([]byte, size)
	}
	return Ptr(retval)
}
