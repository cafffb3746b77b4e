package process

import (
	"errors"
	"io/fs"
	"syscall"

	gproc "github.com/shirou/gopsutil/v3/process"

	"github.com/srodi/procguard/pkg/types"
)

// isGone reports errors meaning the process exited between enumeration and read.
func isGone(err error) bool {
	return errors.Is(err, gproc.ErrorProcessNotRunning) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ESRCH)
}

func isDenied(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// omit decides whether a failed identity read drops the process from the snapshot.
func omit(err error) bool {
	return isGone(err) || isDenied(err)
}

func mapStatus(state string) types.Status {
	switch state {
	case gproc.Running:
		return types.StatusRunning
	case gproc.Sleep:
		return types.StatusSleeping
	case gproc.Idle:
		return types.StatusIdle
	case gproc.Stop:
		return types.StatusStopped
	case gproc.Zombie:
		return types.StatusZombie
	case gproc.Wait:
		return types.StatusWaiting
	case gproc.Lock:
		return types.StatusLocked
	case gproc.Blocked:
		return types.StatusBlocked
	default:
		return types.StatusUnknown
	}
}
