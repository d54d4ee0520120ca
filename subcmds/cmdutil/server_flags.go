// Copyright (c) 2023 BVK Chaitanya

package cmdutil

import (
	"flag"
	"fmt"
	"net"
	"os"
)

type ServerFlags struct {
	Port int
	IP   string
}

func (sf *ServerFlags) SetFlags(fset *flag.FlagSet) {
	fset.IntVar(&sf.Port, "listen-port", 10000, "TCP port number for the status and db api")
	fset.StringVar(&sf.IP, "listen-ip", "127.0.0.1", "TCP ip address for the status and db api")
}

// TCPAddr returns the listen address.
func (sf *ServerFlags) TCPAddr() (*net.TCPAddr, error) {
	ip := net.ParseIP(sf.IP)
	if ip == nil {
		return nil, fmt.Errorf("invalid listen ip address %q: %w", sf.IP, os.ErrInvalid)
	}
	if sf.Port <= 0 || sf.Port > 65535 {
		return nil, fmt.Errorf("invalid listen port %d: %w", sf.Port, os.ErrInvalid)
	}
	return &net.TCPAddr{IP: ip, Port: sf.Port}, nil
}
