//go:build !windows

package api

import (
	"errors"
	"fmt"
	"net"
)

// errPipeUnsupported npipe: адрес задан на платформе без именованных каналов
var errPipeUnsupported = errors.New("named pipes are supported only on Windows")

func listenPipe(addr string) (net.Listener, error) {
	return nil, fmt.Errorf("%w (requested %s, use unix:// instead)", errPipeUnsupported, addr)
}
