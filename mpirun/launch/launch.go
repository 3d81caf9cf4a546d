// Package launch starts the processes of an mpi job and hands each one its
// own address and the addresses of every rank.
package launch

import (
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/btracey/ringbench/mpi"
)

// BasePort is the first port handed out to ranks.
const BasePort = 5000

// Process is one command line to start.
type Process struct {
	Name string
	Args []string
}

// LocalPorts returns n localhost addresses on consecutive ports from base.
func LocalPorts(n, base int) []string {
	ports := make([]string, n)
	for i := range ports {
		ports[i] = ":" + strconv.Itoa(base+i)
	}
	return ports
}

// AllAddrs formats addrs as the value of the all-addresses flag.
func AllAddrs(addrs []string) string {
	return strings.Join(addrs, ",")
}

// MPIArgs returns the flags that place a process at addr within addrs.
func MPIArgs(addr string, addrs []string) []string {
	return []string{"--" + mpi.FlagAddr, addr, "--" + mpi.FlagAllAddrs, AllAddrs(addrs)}
}

// LocalProcesses returns n copies of program listening on ports from base.
func LocalProcesses(n, base int, program string, args []string) []Process {
	addrs := LocalPorts(n, base)
	procs := make([]Process, n)
	for i, addr := range addrs {
		a := append(append([]string{}, args...), MPIArgs(addr, addrs)...)
		procs[i] = Process{Name: program, Args: a}
	}
	return procs
}

// SlurmProcesses returns one srun invocation of program per node, each bound
// to a single task with nCores cores.
func SlurmProcesses(nodes []string, nCores int, program string, args []string) []Process {
	addrs := make([]string, len(nodes))
	for i, node := range nodes {
		addrs[i] = node + ":" + strconv.Itoa(BasePort+i)
	}
	procs := make([]Process, len(nodes))
	for i, node := range nodes {
		a := []string{"-N", "1", "-n", "1", "-c", strconv.Itoa(nCores), "--nodelist", node, program}
		a = append(a, args...)
		a = append(a, MPIArgs(addrs[i], addrs)...)
		procs[i] = Process{Name: "srun", Args: a}
	}
	return procs
}

// ExpandNodelist expands a slurm node list such as "tux[1-3,7] login" into
// the individual node names.
func ExpandNodelist(s string) ([]string, error) {
	var nodes []string
	for _, group := range strings.Fields(s) {
		open := strings.Index(group, "[")
		if open < 0 {
			nodes = append(nodes, group)
			continue
		}
		if !strings.HasSuffix(group, "]") {
			return nil, errors.Errorf("unterminated range in node list %q", group)
		}
		prefix := group[:open]
		for _, r := range strings.Split(group[open+1:len(group)-1], ",") {
			lo, hi, found := strings.Cut(r, "-")
			if !found {
				nodes = append(nodes, prefix+lo)
				continue
			}
			low, err := strconv.Atoi(lo)
			if err != nil {
				return nil, errors.Wrapf(err, "node range %q", r)
			}
			high, err := strconv.Atoi(hi)
			if err != nil {
				return nil, errors.Wrapf(err, "node range %q", r)
			}
			if high < low {
				return nil, errors.Errorf("node range %q is decreasing", r)
			}
			// keep zero padding such as node[01-10]
			width := 0
			if strings.HasPrefix(lo, "0") {
				width = len(lo)
			}
			for i := low; i <= high; i++ {
				num := strconv.Itoa(i)
				for len(num) < width {
					num = "0" + num
				}
				nodes = append(nodes, prefix+num)
			}
		}
	}
	return nodes, nil
}

// Launcher runs processes with shared standard streams.
type Launcher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts every process and waits for all of them. The first failure
// cancels the others and is returned.
func (l *Launcher) Run(ctx context.Context, procs []Process) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range procs {
		i, p := i, p
		g.Go(func() error {
			logger := log.WithFields(log.Fields{"process": i, "program": p.Name})
			logger.Debugf("starting %s", strings.Join(p.Args, " "))
			cmd := exec.CommandContext(ctx, p.Name, p.Args...)
			cmd.Stdin = l.Stdin
			cmd.Stdout = l.Stdout
			cmd.Stderr = l.Stderr
			if err := cmd.Run(); err != nil {
				logger.WithError(err).Error("process failed")
				return errors.Wrapf(err, "process %d (%s)", i, p.Name)
			}
			logger.Debug("process done")
			return nil
		})
	}
	return g.Wait()
}
