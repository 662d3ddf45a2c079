//go:build !gocv

package matcher

func newNativeBackend() (Backend, error) {
	return nil, ErrNativeUnavailable
}
