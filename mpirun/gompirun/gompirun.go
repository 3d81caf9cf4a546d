/*
gompirun launches an mpi job on the local machine.

Generally programs should use Go's own primitives rather than mpi in a
shared-memory environment. Running locally is still helpful for debugging and
prototyping.

The first argument is the number of processes to launch and the second is the
program to run. Any further arguments are passed to the program, followed by
the --mpi-addr and --mpi-alladdr flags of its rank. Process i listens on port
base-port+i.

	gompirun 8 ringbench prim --repeats 20
*/
package main

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/btracey/ringbench/mpirun/launch"
)

func newCmd() *cobra.Command {
	var basePort int
	cmd := &cobra.Command{
		Use:           "gompirun nprocs program [args...]",
		Short:         "Launch nprocs local copies of an mpi program",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrap(err, "parsing number of processes")
			}
			if n < 1 {
				return errors.Errorf("number of processes must be positive, got %d", n)
			}
			l := &launch.Launcher{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
			return l.Run(cmd.Context(), launch.LocalProcesses(n, basePort, args[1], args[2:]))
		},
	}
	// everything after the program name belongs to the program
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().IntVar(&basePort, "base-port", launch.BasePort, "port of rank 0")
	return cmd
}

func main() {
	if err := newCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
