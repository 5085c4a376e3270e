package sim

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

type lockHolder struct {
	expires time.Time
	client  string
	cookie  string
	addr    string
}

type lockState struct {
	holders   map[[2]string]*lockHolder
	tag       string
	desc      string
	exclusive bool
}

// prune drops expired holders.
func (l *lockState) prune(now time.Time) {
	for k, h := range l.holders {
		if !h.expires.IsZero() && now.After(h.expires) {
			delete(l.holders, k)
		}
	}
}

func (l *lockState) sorted() []*lockHolder {
	holders := make([]*lockHolder, 0, len(l.holders))
	for _, h := range l.holders {
		holders = append(holders, h)
	}
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].client != holders[j].client {
			return holders[i].client < holders[j].client
		}
		return holders[i].cookie < holders[j].cookie
	})
	return holders
}

func (io *ioctx) entity() (client, addr string) {
	return fmt.Sprintf("client.%d", io.client.instanceID),
		fmt.Sprintf("127.0.0.1:0/%d", io.client.instanceID)
}

// opLock acquires or renews a lock. Locking a missing object creates it.
func (s *Sim) opLock(name, cookie, tag, desc string, exclusive bool, duration time.Duration, flags native.LockFlag) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		now := s.now()
		client, addr := io.entity()
		id := [2]string{client, cookie}
		renew := flags&(native.LockFlagRenew|native.LockFlagMustRenew) != 0

		obj, exists := p.objects[key]
		if !exists {
			if flags&native.LockFlagMustRenew != 0 {
				return errno(unix.ENOENT), 0
			}
			obj = newObject()
			if rc := s.commit(io, p, key, obj, nil); rc != 0 {
				return rc, 0
			}
		}
		if obj.locks == nil {
			obj.locks = make(map[string]*lockState)
		}

		l := obj.locks[name]
		if l != nil {
			l.prune(now)
			if len(l.holders) == 0 {
				l = nil
			}
		}

		var expires time.Time
		if duration > 0 {
			expires = now.Add(duration)
		}

		if l == nil {
			if flags&native.LockFlagMustRenew != 0 {
				return errno(unix.ENOENT), obj.version
			}
			obj.locks[name] = &lockState{
				holders:   map[[2]string]*lockHolder{id: {client: client, cookie: cookie, addr: addr, expires: expires}},
				tag:       tag,
				desc:      desc,
				exclusive: exclusive,
			}
			return 0, obj.version
		}

		if held, ok := l.holders[id]; ok {
			if !renew || l.exclusive != exclusive {
				return errno(unix.EEXIST), obj.version
			}
			held.expires = expires
			l.desc = desc
			return 0, obj.version
		}
		if flags&native.LockFlagMustRenew != 0 {
			return errno(unix.ENOENT), obj.version
		}
		if exclusive || l.exclusive || l.tag != tag {
			return errno(unix.EBUSY), obj.version
		}
		l.holders[id] = &lockHolder{client: client, cookie: cookie, addr: addr, expires: expires}
		return 0, obj.version
	}
}

// opUnlock releases the holder identified by client and cookie. An empty
// client means the caller's own entity.
func (s *Sim) opUnlock(name, client, cookie string) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		if client == "" {
			client, _ = io.entity()
		}
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}
		l, ok := obj.locks[name]
		if !ok {
			return errno(unix.ENOENT), obj.version
		}
		l.prune(s.now())
		id := [2]string{client, cookie}
		if _, ok := l.holders[id]; !ok {
			return errno(unix.ENOENT), obj.version
		}
		delete(l.holders, id)
		if len(l.holders) == 0 {
			delete(obj.locks, name)
		}
		return 0, obj.version
	}
}

func (s *Sim) opListLockers(name string, tag, clients, cookies, addrs []byte, out *native.LockersOut) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}

		var holders []*lockHolder
		var lockTag string
		var exclusive bool
		if l, ok := obj.locks[name]; ok {
			l.prune(s.now())
			holders = l.sorted()
			lockTag = l.tag
			exclusive = l.exclusive
		}

		need := func(field func(*lockHolder) string) uint64 {
			var n uint64
			for _, h := range holders {
				n += uint64(len(field(h))) + 1
			}
			return n
		}
		out.TagLen = uint64(len(lockTag)) + 1
		out.ClientsLen = need(func(h *lockHolder) string { return h.client })
		out.CookiesLen = need(func(h *lockHolder) string { return h.cookie })
		out.AddrsLen = need(func(h *lockHolder) string { return h.addr })
		out.Exclusive = 0
		if exclusive {
			out.Exclusive = 1
		}

		if out.TagLen > uint64(len(tag)) || out.ClientsLen > uint64(len(clients)) ||
			out.CookiesLen > uint64(len(cookies)) || out.AddrsLen > uint64(len(addrs)) {
			return errno(unix.ERANGE), obj.version
		}

		putCString(tag, lockTag)
		var c, k, a int
		for _, h := range holders {
			putCString(clients[c:], h.client)
			c += len(h.client) + 1
			putCString(cookies[k:], h.cookie)
			k += len(h.cookie) + 1
			putCString(addrs[a:], h.addr)
			a += len(h.addr) + 1
		}
		return len(holders), obj.version
	}
}
