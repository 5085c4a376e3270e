package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wippyai/go-rados"
)

const (
	// execOutputSize bounds the output of object class calls.
	execOutputSize = 64 << 10
	omapPageSize   = 1000
)

// session is an open I/O context plus the state commands share.
type session struct {
	env  *rados.Rados
	conn *rados.Conn
	io   *rados.IOContext
	pool string
}

func newSession(env *rados.Rados, conn *rados.Conn, pool string) (*session, error) {
	ioctx, err := conn.OpenIOContext(pool)
	if err != nil {
		return nil, err
	}
	return &session{env: env, conn: conn, io: ioctx, pool: pool}, nil
}

type command struct {
	fn    func(ctx context.Context, s *session, w io.Writer, args []string) error
	usage string
	help  string
	// nargs is the minimum argument count; maxArgs of -1 means no limit.
	nargs   int
	maxArgs int
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":         {cmdHelp, "help", "list commands", 0, 0},
		"lspools":      {cmdListPools, "lspools", "list pools", 0, 0},
		"mkpool":       {cmdMakePool, "mkpool <pool>", "create a pool", 1, 1},
		"rmpool":       {cmdRemovePool, "rmpool <pool>", "delete a pool", 1, 1},
		"use":          {cmdUse, "use <pool>", "switch to another pool", 1, 1},
		"df":           {cmdDF, "df", "show cluster and pool usage", 0, 0},
		"fsid":         {cmdFSID, "fsid", "show the cluster id", 0, 0},
		"ns":           {cmdNamespace, "ns [namespace]", "show or set the object namespace", 0, 1},
		"ls":           {cmdList, "ls [-a]", "list objects; -a spans every namespace", 0, 1},
		"put":          {cmdPut, "put <obj> <file|->", "write a file to an object", 2, 2},
		"write":        {cmdWrite, "write <obj> <text...>", "write text to an object", 2, -1},
		"append":       {cmdAppend, "append <obj> <text...>", "append text to an object", 2, -1},
		"get":          {cmdGet, "get <obj> [file]", "read an object", 1, 2},
		"stat":         {cmdStat, "stat <obj>", "show object size and mtime", 1, 1},
		"rm":           {cmdRemove, "rm <obj>", "remove an object", 1, 1},
		"truncate":     {cmdTruncate, "truncate <obj> <size>", "resize an object", 2, 2},
		"setxattr":     {cmdSetXattr, "setxattr <obj> <name> <value>", "set an extended attribute", 3, 3},
		"getxattr":     {cmdGetXattr, "getxattr <obj> <name>", "print an extended attribute", 2, 2},
		"rmxattr":      {cmdRemoveXattr, "rmxattr <obj> <name>", "remove an extended attribute", 2, 2},
		"listxattr":    {cmdListXattrs, "listxattr <obj>", "list extended attributes", 1, 1},
		"setomapval":   {cmdSetOmap, "setomapval <obj> <key> <value>", "set an omap entry", 3, 3},
		"listomapvals": {cmdListOmap, "listomapvals <obj> [prefix]", "list omap entries", 1, 2},
		"rmomapkey":    {cmdRemoveOmap, "rmomapkey <obj> <key...>", "remove omap entries", 2, -1},
		"exec":         {cmdExec, "exec <obj> <class> <method> [input]", "call an object class method", 3, 4},
		"checksum":     {cmdChecksum, "checksum <obj> [xxhash64|xxhash32|crc32c] [chunk]", "checksum an object", 1, 3},
		"lock":         {cmdLock, "lock <obj> <name> [shared]", "take an advisory lock", 2, 3},
		"unlock":       {cmdUnlock, "unlock <obj> <name> <cookie>", "release an advisory lock", 3, 3},
		"lockers":      {cmdLockers, "lockers <obj> <name>", "list lock holders", 2, 2},
		"mksnap":       {cmdMakeSnap, "mksnap <name>", "create a pool snapshot", 1, 1},
		"rmsnap":       {cmdRemoveSnap, "rmsnap <name>", "remove a pool snapshot", 1, 1},
		"lssnap":       {cmdListSnaps, "lssnap", "list pool snapshots", 0, 0},
		"rollback":     {cmdRollback, "rollback <obj> <snap>", "roll an object back to a snapshot", 2, 2},
		"mon":          {cmdMon, "mon <prefix...> [key=value...]", "send a monitor command", 1, -1},
	}
}

func writeHelp(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(tw, "  %s\t%s\n", c.usage, c.help)
	}
	_ = tw.Flush()
}

// exec runs one command line.
func (s *session) exec(ctx context.Context, w io.Writer, args []string) error {
	if len(args) == 0 {
		return nil
	}
	c, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	rest := args[1:]
	if len(rest) < c.nargs || (c.maxArgs >= 0 && len(rest) > c.maxArgs) {
		return fmt.Errorf("usage: %s", c.usage)
	}
	return c.fn(ctx, s, w, rest)
}

func cmdHelp(_ context.Context, _ *session, w io.Writer, _ []string) error {
	writeHelp(w)
	return nil
}

func cmdListPools(_ context.Context, s *session, w io.Writer, _ []string) error {
	pools, err := s.conn.ListPools()
	if err != nil {
		return err
	}
	for _, p := range pools {
		fmt.Fprintln(w, p)
	}
	return nil
}

func cmdMakePool(_ context.Context, s *session, w io.Writer, args []string) error {
	if err := s.conn.CreatePool(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(w, "successfully created pool %s\n", args[0])
	return nil
}

func cmdRemovePool(_ context.Context, s *session, w io.Writer, args []string) error {
	if args[0] == s.pool {
		return fmt.Errorf("pool %s is in use", args[0])
	}
	if err := s.conn.DeletePool(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(w, "successfully deleted pool %s\n", args[0])
	return nil
}

func cmdUse(_ context.Context, s *session, w io.Writer, args []string) error {
	ioctx, err := s.conn.OpenIOContext(args[0])
	if err != nil {
		return err
	}
	s.io.Close()
	s.io = ioctx
	s.pool = args[0]
	fmt.Fprintf(w, "using pool %s\n", args[0])
	return nil
}

func cmdDF(_ context.Context, s *session, w io.Writer, _ []string) error {
	cs, err := s.conn.ClusterStat()
	if err != nil {
		return err
	}
	ps, err := s.io.PoolStat()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POOL\tOBJECTS\tBYTES\tRD\tWR")
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.pool, ps.NumObjects, ps.NumBytes, ps.NumRd, ps.NumWr)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "total used\t%d KiB\n", cs.KBUsed)
	fmt.Fprintf(tw, "total avail\t%d KiB\n", cs.KBAvail)
	fmt.Fprintf(tw, "total space\t%d KiB\n", cs.KB)
	fmt.Fprintf(tw, "total objects\t%d\n", cs.NumObjects)
	return tw.Flush()
}

func cmdFSID(_ context.Context, s *session, w io.Writer, _ []string) error {
	fsid, err := s.conn.FSID()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, fsid)
	return nil
}

func cmdNamespace(_ context.Context, s *session, w io.Writer, args []string) error {
	if len(args) == 1 {
		return s.io.SetNamespace(args[0])
	}
	ns, err := s.io.Namespace()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%q\n", ns)
	return nil
}

func cmdList(_ context.Context, s *session, w io.Writer, args []string) error {
	all := len(args) == 1 && args[0] == "-a"
	if len(args) == 1 && !all {
		return fmt.Errorf("usage: %s", commands["ls"].usage)
	}
	if all {
		prev, err := s.io.Namespace()
		if err != nil {
			return err
		}
		if err := s.io.SetNamespace(rados.AllNamespaces); err != nil {
			return err
		}
		defer func() { _ = s.io.SetNamespace(prev) }()
	}

	it, err := s.io.ListObjects()
	if err != nil {
		return err
	}
	var lines []string
	for e, err := range it.All() {
		if err != nil {
			return err
		}
		if all && e.Namespace != "" {
			lines = append(lines, e.Namespace+"\t"+e.OID)
			continue
		}
		lines = append(lines, e.OID)
	}
	slices.Sort(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}

func cmdPut(ctx context.Context, s *session, w io.Writer, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[1] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return err
	}
	return writeAsync(ctx, s.io.Object(args[0]), data)
}

func cmdWrite(ctx context.Context, s *session, _ io.Writer, args []string) error {
	return writeAsync(ctx, s.io.Object(args[0]), []byte(strings.Join(args[1:], " ")))
}

// writeAsync replaces the object contents and waits for the write, giving up
// when ctx is cancelled.
func writeAsync(ctx context.Context, obj *rados.Object, data []byte) error {
	c, err := obj.WriteFullAsync(data)
	if err != nil {
		return err
	}
	defer c.Release()
	_, err = c.Wait(ctx)
	return err
}

func cmdAppend(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.io.Object(args[0]).Append([]byte(strings.Join(args[1:], " ")))
}

func cmdGet(_ context.Context, s *session, w io.Writer, args []string) error {
	obj := s.io.Object(args[0])
	st, err := obj.Stat()
	if err != nil {
		return err
	}
	data, err := obj.Read(int(st.Size), 0)
	if err != nil {
		return err
	}
	if len(args) == 2 && args[1] != "-" {
		return os.WriteFile(args[1], data, 0644)
	}
	_, err = w.Write(data)
	if err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
		_, err = fmt.Fprintln(w)
	}
	return err
}

func cmdStat(_ context.Context, s *session, w io.Writer, args []string) error {
	st, err := s.io.Object(args[0]).Stat()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s/%s mtime %s, size %d\n", s.pool, args[0], st.ModTime.Format(time.RFC3339), st.Size)
	return nil
}

func cmdRemove(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.io.Object(args[0]).Remove()
}

func cmdTruncate(_ context.Context, s *session, _ io.Writer, args []string) error {
	size, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q", args[1])
	}
	return s.io.Object(args[0]).Truncate(size)
}

func cmdSetXattr(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.io.Object(args[0]).SetXattr(args[1], []byte(args[2]))
}

func cmdGetXattr(_ context.Context, s *session, w io.Writer, args []string) error {
	v, err := s.io.Object(args[0]).GetXattr(args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(v))
	return nil
}

func cmdRemoveXattr(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.io.Object(args[0]).RemoveXattr(args[1])
}

func cmdListXattrs(_ context.Context, s *session, w io.Writer, args []string) error {
	attrs, err := s.io.Object(args[0]).Xattrs()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

// writeOp runs tasks as one atomic operation on obj.
func (s *session) writeOp(obj string, tasks ...rados.WriteOpTask) error {
	op, err := s.env.NewWriteOp()
	if err != nil {
		return err
	}
	defer op.Close()
	if err := op.Add(tasks...); err != nil {
		return err
	}
	return op.Operate(s.io.Object(obj), rados.OperationNoFlag)
}

func cmdSetOmap(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.writeOp(args[0], &rados.OmapSetTask{Values: map[string][]byte{args[1]: []byte(args[2])}})
}

func cmdRemoveOmap(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.writeOp(args[0], &rados.OmapRemoveKeysTask{Keys: args[1:]})
}

func cmdListOmap(_ context.Context, s *session, w io.Writer, args []string) error {
	task := &rados.OmapGetValuesTask{Max: omapPageSize}
	if len(args) == 2 {
		task.Prefix = args[1]
	}

	op, err := s.env.NewReadOp()
	if err != nil {
		return err
	}
	defer op.Close()
	if err := op.Add(task); err != nil {
		return err
	}
	if err := op.Operate(s.io.Object(args[0]), rados.OperationNoFlag); err != nil {
		return err
	}
	page, err := task.Result()
	if err != nil {
		return err
	}
	for _, p := range page.Pairs {
		fmt.Fprintf(w, "%s\t%s\n", p.Key, p.Value)
	}
	return nil
}

func cmdExec(_ context.Context, s *session, w io.Writer, args []string) error {
	var in []byte
	if len(args) == 4 {
		in = []byte(args[3])
	}
	res, err := s.io.Object(args[0]).Exec(args[1], args[2], in, execOutputSize)
	if err != nil {
		return err
	}
	if len(res.Output) > 0 {
		fmt.Fprintln(w, string(res.Output))
	}
	return nil
}

func cmdChecksum(_ context.Context, s *session, w io.Writer, args []string) error {
	typ := rados.ChecksumXXHash64
	if len(args) >= 2 {
		switch args[1] {
		case "xxhash64":
		case "xxhash32":
			typ = rados.ChecksumXXHash32
		case "crc32c":
			typ = rados.ChecksumCRC32C
		default:
			return fmt.Errorf("unknown checksum type %q", args[1])
		}
	}
	var chunk uint64
	if len(args) == 3 {
		var err error
		if chunk, err = strconv.ParseUint(args[2], 10, 64); err != nil {
			return fmt.Errorf("invalid chunk size %q", args[2])
		}
	}

	obj := s.io.Object(args[0])
	st, err := obj.Stat()
	if err != nil {
		return err
	}
	sums, err := obj.Checksum(typ, 0, 0, st.Size, chunk)
	if err != nil {
		return err
	}
	for i, sum := range sums {
		fmt.Fprintf(w, "%d\t%0*x\n", i, typ.Size()*2, sum)
	}
	return nil
}

func cmdLock(_ context.Context, s *session, w io.Writer, args []string) error {
	obj := s.io.Object(args[0])
	var (
		l   *rados.Lock
		err error
	)
	switch {
	case len(args) == 3 && args[2] == "shared":
		l, err = obj.LockShared(args[1], rados.LockOptions{Description: "rados cli"})
	case len(args) == 3:
		return fmt.Errorf("usage: %s", commands["lock"].usage)
	default:
		l, err = obj.LockExclusive(args[1], rados.LockOptions{Description: "rados cli"})
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "locked %s cookie %s\n", l.Name, l.Cookie)
	return nil
}

func cmdUnlock(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.io.Object(args[0]).Unlock(args[1], args[2])
}

func cmdLockers(_ context.Context, s *session, w io.Writer, args []string) error {
	ls, err := s.io.Object(args[0]).ListLockers(args[1])
	if err != nil {
		return err
	}
	mode := "shared"
	if ls.Exclusive {
		mode = "exclusive"
	}
	fmt.Fprintf(w, "%s lock %s tag %q\n", mode, args[1], ls.Tag)
	for _, h := range ls.Holders {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", h.Client, h.Cookie, h.Address)
	}
	return nil
}

func cmdMakeSnap(_ context.Context, s *session, w io.Writer, args []string) error {
	if err := s.io.CreateSnapshot(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(w, "created pool %s snap %s\n", s.pool, args[0])
	return nil
}

func cmdRemoveSnap(_ context.Context, s *session, w io.Writer, args []string) error {
	if err := s.io.RemoveSnapshot(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(w, "removed pool %s snap %s\n", s.pool, args[0])
	return nil
}

func cmdListSnaps(_ context.Context, s *session, w io.Writer, _ []string) error {
	snaps, err := s.io.Snapshots()
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		fmt.Fprintf(w, "%d\t%s\t%s\n", snap.ID, snap.Name, snap.Stamp.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "%d snaps\n", len(snaps))
	return nil
}

func cmdRollback(_ context.Context, s *session, _ io.Writer, args []string) error {
	return s.io.Object(args[0]).Rollback(args[1])
}

// cmdMon builds a JSON monitor command. Words form the prefix; key=value
// arguments become fields, with true and false sent as booleans.
func cmdMon(_ context.Context, s *session, w io.Writer, args []string) error {
	cmd := map[string]any{"format": "json"}
	var prefix []string
	for _, a := range args {
		if k, v, ok := strings.Cut(a, "="); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				cmd[k] = b
			} else {
				cmd[k] = v
			}
			continue
		}
		prefix = append(prefix, a)
	}
	cmd["prefix"] = strings.Join(prefix, " ")

	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	res, err := s.conn.MonCommand([]string{string(b)}, nil)
	if err != nil {
		return err
	}
	if res.Status != "" {
		fmt.Fprintln(w, res.Status)
	}
	if len(res.Output) > 0 {
		fmt.Fprintln(w, string(res.Output))
	}
	return nil
}

// splitArgs splits a shell line on spaces, keeping double quoted runs
// together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
