//go:build !unix

package stream

import "syscall"

func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
