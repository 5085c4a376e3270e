package sim

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

func defaultConf() map[string]string {
	return map[string]string{
		"fsid":                       "",
		"mon_host":                   "",
		"keyring":                    "",
		"key":                        "",
		"log_file":                   "",
		"log_to_stderr":              "false",
		"debug_rados":                "0/5",
		"debug_objecter":             "0/1",
		"ms_type":                    "async+posix",
		"client_mount_timeout":       "300",
		"rados_mon_op_timeout":       "0",
		"rados_osd_op_timeout":       "0",
		"rados_tracing":              "false",
		"objecter_inflight_ops":      "1024",
		"objecter_inflight_op_bytes": "104857600",
	}
}

// normalizeOption maps "mon host" and "mon-host" to "mon_host".
func normalizeOption(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// parseConf reads an INI style configuration. Only the [global] and
// [client] sections, and the section named after the client, apply.
func parseConf(data []byte, clientName string) (map[string]string, error) {
	values := make(map[string]string)
	section := "global"

	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if i := strings.IndexAny(text, "#;"); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "[") {
			if !strings.HasSuffix(text, "]") {
				return nil, fmt.Errorf("line %d: unterminated section", line)
			}
			section = strings.TrimSpace(text[1 : len(text)-1])
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key = value", line)
		}
		if section != "global" && section != "client" && section != clientName {
			continue
		}
		values[normalizeOption(key)] = strings.TrimSpace(value)
	}
	return values, sc.Err()
}

// parseArgs reads "--key=value" and "--key value" pairs from a command line
// style string.
func parseArgs(args string) (map[string]string, error) {
	values := make(map[string]string)
	fields := strings.Fields(args)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if !strings.HasPrefix(f, "--") {
			return nil, fmt.Errorf("unexpected argument %q", f)
		}
		f = strings.TrimPrefix(f, "--")
		if key, value, ok := strings.Cut(f, "="); ok {
			values[normalizeOption(key)] = value
			continue
		}
		if i+1 < len(fields) && !strings.HasPrefix(fields[i+1], "--") {
			values[normalizeOption(f)] = fields[i+1]
			i++
			continue
		}
		values[normalizeOption(f)] = "true"
	}
	return values, nil
}

// parseArgv consumes "--option value" and "--option=value" pairs naming
// known options and returns the other arguments in order. A known option
// without a value is an error.
func parseArgv(args []string, known func(string) bool) (map[string]string, []string, error) {
	values := make(map[string]string)
	var rest []string
	for i := 0; i < len(args); i++ {
		name, ok := strings.CutPrefix(args[i], "--")
		if !ok {
			rest = append(rest, args[i])
			continue
		}
		key, value, inline := strings.Cut(name, "=")
		key = normalizeOption(key)
		if !known(key) {
			rest = append(rest, args[i])
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("option --%s needs a value", key)
			}
			i++
			value = args[i]
		}
		values[key] = value
	}
	return values, rest, nil
}
