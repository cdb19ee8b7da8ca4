package probe

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// CommandExecutor abstracts executing shell commands so tests can fake
// the ping utility.
type CommandExecutor interface {
	RunCommand(ctx context.Context, name string, arg ...string) (string, error)
}

// RealCommandExecutor runs commands through os/exec.
type RealCommandExecutor struct{}

// RunCommand runs a command and returns its combined output.
func (r *RealCommandExecutor) RunCommand(ctx context.Context, name string, arg ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, arg...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("command %s %v failed: %w", name, arg, err)
	}
	return string(output), nil
}

// DefaultCommandExecutor is the default RealCommandExecutor instance.
var DefaultCommandExecutor CommandExecutor = &RealCommandExecutor{}

// ExecProber probes by shelling out to the system ping utility. It is
// the fallback for kernels or containers where pro-bing's sockets are
// not available.
type ExecProber struct {
	executor CommandExecutor
}

// NewExecProber creates an ExecProber. A nil executor selects the real one.
func NewExecProber(executor CommandExecutor) *ExecProber {
	if executor == nil {
		executor = DefaultCommandExecutor
	}
	return &ExecProber{executor: executor}
}

// Probe invokes `ping -I <iface> -c <count> -W <wait> <target>` under a
// hard context deadline and parses loss and average latency from its
// output. A non-zero ping exit with parseable output is still a sample;
// unparseable output counts as total loss.
func (p *ExecProber) Probe(ctx context.Context, spec Spec) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	wait := int(spec.Timeout.Seconds()) / spec.Count
	if wait < 1 {
		wait = 1
	}

	args := []string{"-c", strconv.Itoa(spec.Count), "-W", strconv.Itoa(wait)}
	if spec.Interface != "" {
		args = append(args, "-I", spec.Interface)
	}
	args = append(args, spec.Target)

	output, err := p.executor.RunCommand(ctx, "ping", args...)
	loss, avg, parseOK := ParsePingOutput(output)
	if !parseOK {
		if err != nil {
			return Unreachable(spec.Count), err
		}
		return Unreachable(spec.Count), fmt.Errorf("unparseable ping output for %s", spec.Target)
	}

	received := spec.Count - int(float64(spec.Count)*loss/100)
	return Result{
		LossPercent: loss,
		AvgRTT:      avg,
		Sent:        spec.Count,
		Received:    received,
	}, nil
}

var (
	lossRe = regexp.MustCompile(`([\d.]+)% packet loss`)
	rttRe  = regexp.MustCompile(`= [\d.]+/([\d.]+)/`)
)

// ParsePingOutput extracts the loss percentage and average round-trip
// time from iputils/busybox ping output. The rtt summary line is absent
// when every packet was lost.
func ParsePingOutput(output string) (loss float64, avg time.Duration, ok bool) {
	m := lossRe.FindStringSubmatch(output)
	if m == nil {
		return 100, 0, false
	}
	loss, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 100, 0, false
	}

	if m := rttRe.FindStringSubmatch(output); m != nil {
		if ms, err := strconv.ParseFloat(m[1], 64); err == nil {
			avg = time.Duration(ms * float64(time.Millisecond))
		}
	}
	return loss, avg, true
}
