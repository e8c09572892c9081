package daemon

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// usage is a point-in-time resource sample of one process.
type usage struct {
	CPU    float64
	Memory uint64
}

// sampleUsage reads resident memory from /proc, falling back to ps where
// /proc is unavailable. CPU always comes from ps. Unknown values are zero.
func sampleUsage(pid int) usage {
	if pid <= 0 {
		return usage{}
	}
	var u usage
	if rss, err := readProcRSS(pid); err == nil {
		u.Memory = rss
	} else if kb, err := readPsField(pid, "rss"); err == nil {
		u.Memory = uint64(kb) * 1024
	}
	if cpu, err := readPsField(pid, "%cpu"); err == nil {
		u.CPU = cpu
	}
	return u
}

func readProcRSS(pid int) (uint64, error) {
	path := filepath.Join("/proc", strconv.Itoa(pid), "statm")
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := bytes.Fields(data)
	if len(fields) < 2 {
		return 0, strconv.ErrSyntax
	}
	pages, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0, err
	}
	return pages * uint64(os.Getpagesize()), nil
}

func readPsField(pid int, field string) (float64, error) {
	cmd := exec.Command("ps", "-o", field+"=", "-p", strconv.Itoa(pid))
	output, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
}
