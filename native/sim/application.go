package sim

import (
	"sort"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

// putList writes names as NUL terminated strings. n holds the capacity of
// buf and receives the length used, or needed when buf is too small.
func putList(buf []byte, n *int, names []string) int {
	need := 0
	for _, name := range names {
		need += len(name) + 1
	}
	capacity := min(*n, len(buf))
	*n = need
	if need > capacity {
		return errno(unix.ERANGE)
	}
	off := 0
	for _, name := range names {
		copy(buf[off:], name)
		buf[off+len(name)] = 0
		off += len(name) + 1
	}
	return 0
}

// withPool runs fn on the live pool of io under s.mu.
func (s *Sim) withPool(h native.Handle, fn func(p *pool) int) int {
	io := s.ioctx(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	return fn(p)
}

// ApplicationEnable tags the pool with app. A second application needs
// force.
func (s *Sim) ApplicationEnable(h native.Handle, app string, force bool) int {
	return s.withPool(h, func(p *pool) int {
		if _, ok := p.apps[app]; ok {
			return 0
		}
		if len(p.apps) > 0 && !force {
			return errno(unix.EPERM)
		}
		p.apps[app] = make(map[string]string)
		return 0
	})
}

func (s *Sim) ApplicationList(h native.Handle, buf []byte, n *int) int {
	return s.withPool(h, func(p *pool) int {
		names := make([]string, 0, len(p.apps))
		for name := range p.apps {
			names = append(names, name)
		}
		sort.Strings(names)
		return putList(buf, n, names)
	})
}

func (s *Sim) ApplicationMetadataGet(h native.Handle, app, key string, buf []byte, n *int) int {
	return s.withPool(h, func(p *pool) int {
		md, ok := p.apps[app]
		if !ok {
			return errno(unix.ENOENT)
		}
		v, ok := md[key]
		if !ok {
			return errno(unix.ENOENT)
		}
		return putList(buf, n, []string{v})
	})
}

func (s *Sim) ApplicationMetadataSet(h native.Handle, app, key, value string) int {
	return s.withPool(h, func(p *pool) int {
		md, ok := p.apps[app]
		if !ok {
			return errno(unix.ENOENT)
		}
		md[key] = value
		return 0
	})
}

// ApplicationMetadataRemove succeeds for missing keys of an enabled
// application.
func (s *Sim) ApplicationMetadataRemove(h native.Handle, app, key string) int {
	return s.withPool(h, func(p *pool) int {
		md, ok := p.apps[app]
		if !ok {
			return errno(unix.ENOENT)
		}
		delete(md, key)
		return 0
	})
}

// ApplicationMetadataList fails with -ERANGE when either buffer is short and
// reports both needed lengths.
func (s *Sim) ApplicationMetadataList(h native.Handle, app string, keys []byte, keysLen *int, vals []byte, valsLen *int) int {
	return s.withPool(h, func(p *pool) int {
		md, ok := p.apps[app]
		if !ok {
			return errno(unix.ENOENT)
		}
		names := make([]string, 0, len(md))
		for k := range md {
			names = append(names, k)
		}
		sort.Strings(names)
		values := make([]string, len(names))
		for i, k := range names {
			values[i] = md[k]
		}
		rcKeys := putList(keys, keysLen, names)
		rcVals := putList(vals, valsLen, values)
		if rcKeys < 0 {
			return rcKeys
		}
		return rcVals
	})
}

// Simulated pools are replicated and never require aligned appends.

func (s *Sim) IoctxPoolRequiresAlignment2(h native.Handle, requires *int) int {
	return s.withPool(h, func(*pool) int {
		*requires = 0
		return 0
	})
}

func (s *Sim) IoctxPoolRequiredAlignment2(h native.Handle, alignment *uint64) int {
	return s.withPool(h, func(*pool) int {
		*alignment = 0
		return 0
	})
}
