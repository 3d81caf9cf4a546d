/*
gompirunslurm launches an mpi job inside a slurm allocation, one process per
allocated node. Allocate the nodes with salloc first:

	salloc -N6 -c12
	gompirunslurm 12 ringbench prim

Note that the first argument differs from gompirun: it is the number of cores
given to each process, not the number of processes. Nodes are read from
SLURM_JOB_NODELIST and every process is started with srun.
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
	cmd := &cobra.Command{
		Use:           "gompirunslurm ncores program [args...]",
		Short:         "Launch one copy of an mpi program on every node of a slurm allocation",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			nCores, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrap(err, "parsing number of cores")
			}
			if nCores < 1 {
				return errors.Errorf("number of cores must be positive, got %d", nCores)
			}
			nodes, err := launch.ExpandNodelist(os.Getenv("SLURM_JOB_NODELIST"))
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				return errors.New("SLURM_JOB_NODELIST is empty, run inside an allocation")
			}
			log.Infof("launching on %d nodes", len(nodes))
			l := &launch.Launcher{Stdout: os.Stdout, Stderr: os.Stderr}
			return l.Run(cmd.Context(), launch.SlurmProcesses(nodes, nCores, args[1], args[2:]))
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func main() {
	if err := newCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
