package rados

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// Conn is a cluster handle. It is the root of its resource tree: closing it
// closes every I/O context opened through it first.
type Conn struct {
	env       *Rados
	res       *resource.Resource
	connected *atomic.Bool
	cluster   string
	user      string
}

type connConfig struct {
	cluster string
	user    string
	flags   uint64
}

// ConnOption configures a cluster handle.
type ConnOption func(*connConfig)

// WithClusterName selects the cluster. The native default is "ceph".
func WithClusterName(name string) ConnOption {
	return func(c *connConfig) { c.cluster = name }
}

// WithUser sets the fully qualified user, for example "client.admin".
func WithUser(name string) ConnOption {
	return func(c *connConfig) { c.user = name }
}

// WithFlags passes flags to the handle constructor.
func WithFlags(flags uint64) ConnOption {
	return func(c *connConfig) { c.flags = flags }
}

// NewConn creates an unconnected cluster handle.
func (r *Rados) NewConn(opts ...ConnOption) (*Conn, error) {
	var cfg connConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	h, rc := r.lib.Create2(cfg.cluster, cfg.user, cfg.flags)
	if _, err := errors.Check(errors.PhaseCluster, "rados_create2", rc); err != nil {
		return nil, err
	}

	lib := r.lib
	connected := &atomic.Bool{}
	c := &Conn{
		env:       r,
		connected: connected,
		cluster:   cfg.cluster,
		user:      cfg.user,
		res: r.registry.New(nil, resource.KindCluster, h, func(h native.Handle) error {
			connected.Store(false)
			lib.Shutdown(h)
			return nil
		}),
	}
	resource.Track(c, c.res)
	return c, nil
}

func (c *Conn) handle() (native.Handle, error) {
	return c.res.Handle()
}

func (c *Conn) connectedHandle(op string) (native.Handle, error) {
	h, err := c.res.Handle()
	if err != nil {
		return 0, err
	}
	if !c.connected.Load() {
		return 0, errors.NotConnected(op)
	}
	return h, nil
}

// ReadConfigFile reads a configuration file. An empty path lets the native
// library search its default locations.
func (c *Conn) ReadConfigFile(path string) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseCluster, "rados_conf_read_file", c.env.lib.ConfReadFile(h, path))
	return err
}

// ParseEnv applies command line style options from the environment variable
// env, or CEPH_ARGS when env is empty.
func (c *Conn) ParseEnv(env string) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseCluster, "rados_conf_parse_env", c.env.lib.ConfParseEnv(h, env))
	return err
}

// argv0 stands in for the program name, which argument parsing skips.
const argv0 = "rados"

// ParseArgs applies command line style options such as "--mon-host".
func (c *Conn) ParseArgs(args []string) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	argv := append([]string{argv0}, args...)
	_, err = errors.Check(errors.PhaseCluster, "rados_conf_parse_argv", c.env.lib.ConfParseArgv(h, argv))
	return err
}

// ParseArgsRemainder applies the options it knows and returns the
// arguments it did not consume.
func (c *Conn) ParseArgsRemainder(args []string) ([]string, error) {
	h, err := c.handle()
	if err != nil {
		return nil, err
	}
	argv := append([]string{argv0}, args...)
	rest, rc := c.env.lib.ConfParseArgvRemainder(h, argv)
	if _, err := errors.Check(errors.PhaseCluster, "rados_conf_parse_argv_remainder", rc); err != nil {
		return nil, err
	}
	return rest, nil
}

// SetConfig sets a configuration option.
func (c *Conn) SetConfig(option, value string) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseCluster, "rados_conf_set", c.env.lib.ConfSet(h, option, value))
	return err
}

// GetConfig returns the value of a configuration option.
func (c *Conn) GetConfig(option string) (string, error) {
	h, err := c.handle()
	if err != nil {
		return "", err
	}
	const op = "rados_conf_get"
	buf, _, err := buffer.Retry(c.env.initial(defaultConfigSize), func(b *buffer.Buffer) int {
		return c.env.lib.ConfGet(h, option, b.Bytes())
	}, c.env.retryOpts(errors.PhaseCluster, op, buffer.On(unix.ENAMETOOLONG))...)
	if err != nil {
		return "", err
	}
	return buf.CString(), nil
}

// Connect connects to the cluster.
func (c *Conn) Connect() error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	if _, err := errors.Check(errors.PhaseCluster, "rados_connect", c.env.lib.Connect(h)); err != nil {
		return err
	}
	c.connected.Store(true)
	c.env.logger.Debug("connected", zap.String("cluster", c.cluster), zap.String("user", c.user))
	return nil
}

// IsConnected reports whether Connect succeeded and the handle is still open.
func (c *Conn) IsConnected() bool {
	return c.connected.Load() && c.res.Valid()
}

// Close shuts the handle down, closing every I/O context first. It is
// idempotent.
func (c *Conn) Close() {
	c.res.Release()
}

// Shutdown is Close.
func (c *Conn) Shutdown() {
	c.Close()
}

// Valid reports whether the handle is still open.
func (c *Conn) Valid() bool {
	return c.res.Valid()
}

// Resource exposes the underlying resource node.
func (c *Conn) Resource() *resource.Resource {
	return c.res
}

// ClusterStat returns cluster wide usage.
func (c *Conn) ClusterStat() (ClusterStat, error) {
	var st ClusterStat
	h, err := c.connectedHandle("rados_cluster_stat")
	if err != nil {
		return st, err
	}
	_, err = errors.Check(errors.PhaseCluster, "rados_cluster_stat", c.env.lib.ClusterStat(h, &st))
	return st, err
}

// FSID returns the cluster id.
func (c *Conn) FSID() (string, error) {
	h, err := c.handle()
	if err != nil {
		return "", err
	}
	const op = "rados_cluster_fsid"
	buf, n, err := buffer.Retry(c.env.initial(37), func(b *buffer.Buffer) int {
		return c.env.lib.ClusterFSID(h, b.Bytes())
	}, c.env.retryOpts(errors.PhaseCluster, op)...)
	if err != nil {
		return "", err
	}
	return buf.String(n), nil
}

// WaitForLatestOSDMap blocks until the client has the newest cluster map.
func (c *Conn) WaitForLatestOSDMap() error {
	h, err := c.connectedHandle("rados_wait_for_latest_osdmap")
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseCluster, "rados_wait_for_latest_osdmap", c.env.lib.WaitForLatestOSDMap(h))
	return err
}

// InstanceID returns the id the cluster assigned to this client.
func (c *Conn) InstanceID() (uint64, error) {
	h, err := c.connectedHandle("rados_get_instance_id")
	if err != nil {
		return 0, err
	}
	return c.env.lib.GetInstanceID(h), nil
}

// ListPools returns the names of all pools.
func (c *Conn) ListPools() ([]string, error) {
	const op = "rados_pool_list"
	h, err := c.connectedHandle(op)
	if err != nil {
		return nil, err
	}
	// The call reports the length it needs rather than failing, so a short
	// buffer is turned into the usual retry signal.
	buf, n, err := buffer.Retry(c.env.initial(defaultListSize), func(b *buffer.Buffer) int {
		rc := c.env.lib.PoolList(h, b.Bytes())
		if rc > b.Cap() {
			return -int(unix.ERANGE)
		}
		return rc
	}, c.env.retryOpts(errors.PhasePool, op)...)
	if err != nil {
		return nil, err
	}
	return buf.Strings(n, true), nil
}

// CreatePool creates a pool with default settings.
func (c *Conn) CreatePool(name string) error {
	const op = "rados_pool_create"
	h, err := c.connectedHandle(op)
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhasePool, op, c.env.lib.PoolCreate(h, name))
	return err
}

// CreatePoolWithCrushRule creates a pool placed by the given CRUSH rule.
func (c *Conn) CreatePoolWithCrushRule(name string, rule uint8) error {
	const op = "rados_pool_create_with_crush_rule"
	h, err := c.connectedHandle(op)
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhasePool, op, c.env.lib.PoolCreateWithCrushRule(h, name, rule))
	return err
}

// DeletePool deletes a pool and everything in it.
func (c *Conn) DeletePool(name string) error {
	const op = "rados_pool_delete"
	h, err := c.connectedHandle(op)
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhasePool, op, c.env.lib.PoolDelete(h, name))
	return err
}

// LookupPool returns the id of a pool.
func (c *Conn) LookupPool(name string) (int64, error) {
	const op = "rados_pool_lookup"
	h, err := c.connectedHandle(op)
	if err != nil {
		return 0, err
	}
	return errors.Check(errors.PhasePool, op, c.env.lib.PoolLookup(h, name))
}

// PoolName returns the name of the pool with the given id.
func (c *Conn) PoolName(id int64) (string, error) {
	const op = "rados_pool_reverse_lookup"
	h, err := c.connectedHandle(op)
	if err != nil {
		return "", err
	}
	buf, n, err := buffer.Retry(c.env.initial(defaultNameSize), func(b *buffer.Buffer) int {
		return c.env.lib.PoolReverseLookup(h, id, b.Bytes())
	}, c.env.retryOpts(errors.PhasePool, op)...)
	if err != nil {
		return "", err
	}
	return buf.String(n), nil
}

// PoolBaseTier returns the id of the pool a cache tier pool sits on, or
// the pool's own id when it is not a tier.
func (c *Conn) PoolBaseTier(id int64) (int64, error) {
	const op = "rados_pool_get_base_tier"
	h, err := c.connectedHandle(op)
	if err != nil {
		return 0, err
	}
	var tier int64
	_, err = errors.Check(errors.PhasePool, op, c.env.lib.PoolGetBaseTier(h, id, &tier))
	return tier, err
}

// InconsistentPGs lists the placement groups of a pool that scrubbing found
// inconsistent.
func (c *Conn) InconsistentPGs(id int64) ([]string, error) {
	const op = "rados_inconsistent_pg_list"
	h, err := c.connectedHandle(op)
	if err != nil {
		return nil, err
	}
	buf, n, err := buffer.Retry(c.env.initial(defaultListSize), func(b *buffer.Buffer) int {
		rc := c.env.lib.InconsistentPGList(h, id, b.Bytes())
		if rc > b.Cap() {
			return -int(unix.ERANGE)
		}
		return rc
	}, c.env.retryOpts(errors.PhasePool, op)...)
	if err != nil {
		return nil, err
	}
	return buf.Strings(n, true), nil
}

// MinCompatibleOSD returns the oldest OSD release the cluster requires.
func (c *Conn) MinCompatibleOSD() (int, error) {
	const op = "rados_get_min_compatible_osd"
	h, err := c.connectedHandle(op)
	if err != nil {
		return 0, err
	}
	var release int8
	_, err = errors.Check(errors.PhaseCluster, op, c.env.lib.GetMinCompatibleOSD(h, &release))
	return int(release), err
}

// ClientRequirement holds the client releases a cluster accepts. Min is
// derived from the features in use; RequireMin is the configured floor.
type ClientRequirement struct {
	Min        int
	RequireMin int
}

// MinCompatibleClient returns the oldest client releases the cluster
// accepts.
func (c *Conn) MinCompatibleClient() (ClientRequirement, error) {
	const op = "rados_get_min_compatible_client"
	h, err := c.connectedHandle(op)
	if err != nil {
		return ClientRequirement{}, err
	}
	var minRelease, requireMin int8
	if _, err := errors.Check(errors.PhaseCluster, op, c.env.lib.GetMinCompatibleClient(h, &minRelease, &requireMin)); err != nil {
		return ClientRequirement{}, err
	}
	return ClientRequirement{Min: int(minRelease), RequireMin: int(requireMin)}, nil
}

// PingMonitor asks a monitor for its status without a full connection.
func (c *Conn) PingMonitor(monID string) (string, error) {
	h, err := c.handle()
	if err != nil {
		return "", err
	}
	out, n, rc := c.env.lib.PingMonitor(h, monID)
	outBuf := newNativeBuffer(c, out, n)
	defer outBuf.Release()

	if _, err := errors.Check(errors.PhaseCommand, "rados_ping_monitor", rc); err != nil {
		return "", err
	}
	data, err := outBuf.Bytes()
	return string(data), err
}

// MonResult is the output of a monitor command.
type MonResult struct {
	Status string
	Output []byte
}

// MonCommand sends a command to the monitors. cmd holds the pieces of a JSON
// command object. A failed command returns the status text in the error
// detail.
func (c *Conn) MonCommand(cmd []string, in []byte) (MonResult, error) {
	const op = "rados_mon_command"
	var res MonResult
	h, err := c.connectedHandle(op)
	if err != nil {
		return res, err
	}

	out, outLen, status, statusLen, rc := c.env.lib.MonCommand(h, cmd, in)
	outBuf := newNativeBuffer(c, out, outLen)
	statusBuf := newNativeBuffer(c, status, statusLen)
	defer outBuf.Release()
	defer statusBuf.Release()

	st, err := statusBuf.Bytes()
	if err != nil {
		return res, err
	}
	res.Status = string(st)

	if rc < 0 {
		e := errors.Native(errors.PhaseCommand, op, int64(rc))
		e.Detail = res.Status
		return res, e
	}
	if res.Output, err = outBuf.Bytes(); err != nil {
		return res, err
	}
	return res, nil
}

// OpenIOContext opens an I/O context on the named pool.
func (c *Conn) OpenIOContext(pool string) (*IOContext, error) {
	const op = "rados_ioctx_create"
	h, err := c.connectedHandle(op)
	if err != nil {
		return nil, err
	}
	io, rc := c.env.lib.IoctxCreate(h, pool)
	if _, err := errors.Check(errors.PhaseIOContext, op, rc); err != nil {
		return nil, err
	}
	return newIOContext(c, io), nil
}

// OpenIOContextByID opens an I/O context on the pool with the given id.
func (c *Conn) OpenIOContextByID(id int64) (*IOContext, error) {
	const op = "rados_ioctx_create2"
	h, err := c.connectedHandle(op)
	if err != nil {
		return nil, err
	}
	io, rc := c.env.lib.IoctxCreate2(h, id)
	if _, err := errors.Check(errors.PhaseIOContext, op, rc); err != nil {
		return nil, err
	}
	return newIOContext(c, io), nil
}
