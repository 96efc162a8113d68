package lock

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"
)

// LockInfo is written to info.json inside the lock directory so a blocked
// run can say who it is waiting for.
type LockInfo struct {
	User     string    `json:"user"`
	Hostname string    `json:"hostname"`
	Started  time.Time `json:"started"`
	PID      int       `json:"pid"`
	Pipeline string    `json:"pipeline,omitempty"`
}

// NewLockInfo describes this process running pipeline.
func NewLockInfo(pipeline string) *LockInfo {
	info := &LockInfo{
		User:     "unknown",
		Hostname: "unknown",
		Started:  time.Now(),
		PID:      os.Getpid(),
		Pipeline: pipeline,
	}
	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			info.User = v
			break
		}
	}
	return info
}

// Age returns how long ago the lock was taken.
func (i *LockInfo) Age() time.Duration {
	return time.Since(i.Started)
}

// Orphaned reports whether the holder ran on this machine and its process
// is gone. Holders on other hosts (a shared work dir) are never orphaned.
func (i *LockInfo) Orphaned() bool {
	if i.PID <= 0 || runtime.GOOS == "windows" {
		return false
	}
	if host, err := os.Hostname(); err != nil || host != i.Hostname {
		return false
	}
	proc, err := os.FindProcess(i.PID)
	if err != nil {
		return true
	}
	err = proc.Signal(syscall.Signal(0))
	return err != nil && !stderrors.Is(err, syscall.EPERM)
}

// Marshal encodes the info as JSON.
func (i *LockInfo) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

// ParseLockInfo decodes info.json.
func ParseLockInfo(data []byte) (*LockInfo, error) {
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// String returns "user@host (pid N) running pipeline".
func (i *LockInfo) String() string {
	s := fmt.Sprintf("%s@%s (pid %d)", i.User, i.Hostname, i.PID)
	if i.Pipeline != "" {
		s += " running " + i.Pipeline
	}
	return s
}
