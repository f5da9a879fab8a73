//go:build windows

package api

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// listenPipe открывает именованный канал для gRPC (\\.\pipe\...).
// Размеры буферов увеличены под пакеты шаблонов кардиоциклов.
func listenPipe(addr string) (net.Listener, error) {
	return winio.ListenPipe(addr, &winio.PipeConfig{
		InputBufferSize:  1 << 20,
		OutputBufferSize: 1 << 20,
	})
}
