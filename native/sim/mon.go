package sim

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

func (s *Sim) PingMonitor(h native.Handle, monID string) (native.Handle, int, int) {
	s.client(h)
	if monID == "" {
		return 0, 0, errno(unix.EINVAL)
	}
	out, err := json.Marshal(map[string]any{
		"mon":    monID,
		"fsid":   s.fsid,
		"health": map[string]string{"status": "HEALTH_OK"},
	})
	if err != nil {
		return 0, 0, errno(unix.EIO)
	}
	buf, n := s.newBuffer(out)
	return buf, n, 0
}

// MonCommand runs a monitor command. The command pieces are concatenated
// into one JSON object whose "prefix" selects the command.
func (s *Sim) MonCommand(h native.Handle, cmd []string, _ []byte) (native.Handle, int, native.Handle, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return 0, 0, 0, 0, rc
	}

	out, status, rc := s.monCommand(strings.Join(cmd, ""))
	outBuf, outLen := s.newBuffer(out)
	statusBuf, statusLen := s.newBuffer([]byte(status))
	return outBuf, outLen, statusBuf, statusLen, rc
}

type monArgs struct {
	Prefix  string `json:"prefix"`
	Format  string `json:"format"`
	Pool    string `json:"pool"`
	Pool2   string `json:"pool2"`
	Confirm bool   `json:"yes_i_really_really_mean_it"`
}

// monCommand dispatches a command. Callers hold s.mu.
func (s *Sim) monCommand(raw string) ([]byte, string, int) {
	var args monArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, "command not parseable: " + err.Error(), errno(unix.EINVAL)
	}

	switch args.Prefix {
	case "fsid":
		return s.monOutput(args, map[string]string{"fsid": s.fsid}, s.fsid)

	case "health":
		return s.monOutput(args, map[string]any{"status": "HEALTH_OK", "checks": map[string]any{}}, "HEALTH_OK")

	case "status":
		return s.monOutput(args, map[string]any{
			"fsid":   s.fsid,
			"health": map[string]string{"status": "HEALTH_OK"},
			"pools":  len(s.pools),
		}, fmt.Sprintf("cluster %s HEALTH_OK, %d pools", s.fsid, len(s.pools)))

	case "osd pool ls":
		names := make([]string, 0, len(s.pools))
		for _, p := range s.sortedPools() {
			names = append(names, p.name)
		}
		return s.monOutput(args, names, strings.Join(names, "\n"))

	case "df":
		type poolUsage struct {
			Name    string `json:"name"`
			ID      int64  `json:"id"`
			Bytes   uint64 `json:"bytes_used"`
			Objects int    `json:"objects"`
		}
		var pools []poolUsage
		for _, p := range s.sortedPools() {
			pools = append(pools, poolUsage{Name: p.name, ID: p.id, Bytes: p.bytes(), Objects: len(p.objects)})
		}
		return s.monOutput(args, map[string]any{"pools": pools}, fmt.Sprintf("%d pools", len(pools)))

	case "osd pool create":
		if args.Pool == "" {
			return nil, "missing required parameter pool", errno(unix.EINVAL)
		}
		if _, ok := s.pools[args.Pool]; ok {
			return nil, fmt.Sprintf("pool '%s' already exists", args.Pool), 0
		}
		if _, rc := s.createPool(args.Pool); rc != 0 {
			return nil, "", rc
		}
		return nil, fmt.Sprintf("pool '%s' created", args.Pool), 0

	case "osd pool delete", "osd pool rm":
		if args.Pool == "" {
			return nil, "missing required parameter pool", errno(unix.EINVAL)
		}
		if _, ok := s.pools[args.Pool]; !ok {
			return nil, fmt.Sprintf("pool '%s' does not exist", args.Pool), 0
		}
		if args.Pool2 != args.Pool || !args.Confirm {
			return nil, "pool deletion requires the pool name twice and --yes-i-really-really-mean-it", errno(unix.EPERM)
		}
		if rc := s.deletePool(args.Pool); rc != 0 {
			return nil, "", rc
		}
		return nil, fmt.Sprintf("pool '%s' removed", args.Pool), 0
	}

	return nil, "command not known", errno(unix.EINVAL)
}

// monOutput renders v as JSON when the command asks for it, and text otherwise.
func (s *Sim) monOutput(args monArgs, v any, text string) ([]byte, string, int) {
	if !strings.HasPrefix(args.Format, "json") {
		return []byte(text + "\n"), "", 0
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, err.Error(), errno(unix.EIO)
	}
	return out, "", 0
}
