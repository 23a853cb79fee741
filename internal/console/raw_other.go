//go:build !linux

package console

import "errors"

// makeRaw — заглушка на не-Linux: терминал остаётся в каноническом режиме,
// команды принимаются после Enter.
func makeRaw(_ int) (func() error, error) {
	return nil, errors.New("raw terminal mode not supported")
}
