package mpi

import (
	"time"

	"github.com/spf13/pflag"
)

// Flag names registered by AddFlags.
const (
	FlagAddr        = "mpi-addr"
	FlagAllAddrs    = "mpi-alladdr"
	FlagInitTimeout = "mpi-inittimeout"
	FlagProtocol    = "mpi-protocol"
	FlagPassword    = "mpi-password"
)

// Config holds the settings of a Network. The mapstructure tags let it be
// filled from a config file as well as from flags.
type Config struct {
	Addr        string        `mapstructure:"addr"`
	Addrs       []string      `mapstructure:"alladdr"`
	InitTimeout time.Duration `mapstructure:"inittimeout"`
	Protocol    string        `mapstructure:"protocol"`
	Password    string        `mapstructure:"password"`
}

// AddFlags registers the mpi flags on fs.
//
//	--mpi-addr:        address of the local running process
//	--mpi-alladdr:     comma separated list of the addresses of all the processes
//	--mpi-inittimeout: how long Init may take before timing out
//	--mpi-protocol:    network protocol to use
//	--mpi-password:    password checked when connections are made
func AddFlags(fs *pflag.FlagSet) {
	fs.String(FlagAddr, "", "address of the local running process")
	fs.StringSlice(FlagAllAddrs, nil, "addresses of all of the processes as comma separated values")
	fs.Duration(FlagInitTimeout, 30*time.Second, "duration to wait before timeout in init (0 waits forever)")
	fs.String(FlagProtocol, "tcp", "communication protocol to use")
	fs.String(FlagPassword, "", "value to use for salting the mpi connection")
}
