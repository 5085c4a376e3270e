package rados

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
)

// cookieAttempts bounds retries when a generated cookie collides.
const cookieAttempts = 3

// LockOptions describes an advisory lock request.
type LockOptions struct {
	// Cookie identifies this holder. A random one is generated when empty.
	Cookie string
	// Tag groups shared holders; every shared holder must use the same tag.
	Tag         string
	Description string
	// Duration of zero holds the lock until it is released.
	Duration time.Duration
	Flags    LockFlag
}

// Lock is an advisory lock held by this client.
type Lock struct {
	obj       *Object
	Name      string
	Cookie    string
	Tag       string
	Exclusive bool
	opts      LockOptions
}

// ForeignLock is one holder of a lock as reported by lock listing.
type ForeignLock struct {
	Name      string
	Client    string
	Cookie    string
	Address   string
	Tag       string
	Exclusive bool
}

// Lockers is the state of a named lock.
type Lockers struct {
	Tag       string
	Holders   []ForeignLock
	Exclusive bool
}

func newCookie() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// LockExclusive takes an exclusive lock.
func (o *Object) LockExclusive(name string, opts LockOptions) (*Lock, error) {
	return o.lock(name, opts, true)
}

// LockShared takes a shared lock.
func (o *Object) LockShared(name string, opts LockOptions) (*Lock, error) {
	return o.lock(name, opts, false)
}

func (o *Object) lock(name string, opts LockOptions, exclusive bool) (*Lock, error) {
	op := "rados_lock_shared"
	if exclusive {
		op = "rados_lock_exclusive"
	}
	h, err := o.io.handle()
	if err != nil {
		return nil, err
	}

	generated := opts.Cookie == ""
	for attempt := 0; ; attempt++ {
		if generated {
			if opts.Cookie, err = newCookie(); err != nil {
				return nil, errors.Wrap(errors.PhaseObject, errors.KindInvalidInput, err, "generate lock cookie")
			}
		}

		var rc int
		if exclusive {
			rc = o.lib().LockExclusive(h, o.oid, name, opts.Cookie, opts.Description, opts.Duration, opts.Flags)
		} else {
			rc = o.lib().LockShared(h, o.oid, name, opts.Cookie, opts.Tag, opts.Description, opts.Duration, opts.Flags)
		}
		err = o.check(op, rc)
		if err == nil {
			break
		}
		if !generated || attempt+1 >= cookieAttempts || !errors.IsErrno(err, unix.EEXIST) {
			return nil, err
		}
	}

	return &Lock{
		obj:       o,
		Name:      name,
		Cookie:    opts.Cookie,
		Tag:       opts.Tag,
		Exclusive: exclusive,
		opts:      opts,
	}, nil
}

// Renew extends the lock by its original duration.
func (l *Lock) Renew() error {
	opts := l.opts
	opts.Flags = LockFlagMustRenew
	_, err := l.obj.lock(l.Name, opts, l.Exclusive)
	return err
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	return l.obj.Unlock(l.Name, l.Cookie)
}

// Unlock releases a lock held by this client.
func (o *Object) Unlock(name, cookie string) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_unlock", o.lib().Unlock(h, o.oid, name, cookie))
}

// BreakLock releases a lock held by another client.
func (o *Object) BreakLock(name, client, cookie string) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_break_lock", o.lib().BreakLock(h, o.oid, name, client, cookie))
}

// ListLockers returns the holders of a named lock. The native call fills four
// buffers at once and fails as a whole when any of them is too small.
func (o *Object) ListLockers(name string) (*Lockers, error) {
	const op = "rados_list_lockers"
	h, err := o.io.handle()
	if err != nil {
		return nil, err
	}

	var tag, clients, cookies, addrs *buffer.Buffer
	var out native.LockersOut
	_, count, err := buffer.RetrySized(o.io.env.initial(defaultLockersSize), func(capacity int) int {
		tag, clients = buffer.New(capacity), buffer.New(capacity)
		cookies, addrs = buffer.New(capacity), buffer.New(capacity)
		out = native.LockersOut{
			TagLen:     uint64(capacity),
			ClientsLen: uint64(capacity),
			CookiesLen: uint64(capacity),
			AddrsLen:   uint64(capacity),
		}
		return o.lib().ListLockers(h, o.oid, name, tag.Bytes(), clients.Bytes(), cookies.Bytes(), addrs.Bytes(), &out)
	}, o.io.env.retryOpts(errors.PhaseObject, op)...)
	if err != nil {
		return nil, err
	}

	ls := &Lockers{Tag: tag.CString(), Exclusive: out.Exclusive != 0}
	clientList := clients.Strings(int(out.ClientsLen), false)
	cookieList := cookies.Strings(int(out.CookiesLen), false)
	addrList := addrs.Strings(int(out.AddrsLen), false)
	if len(clientList) != count || len(cookieList) != count || len(addrList) != count {
		return nil, errors.New(errors.PhaseObject, errors.KindMalformedOutput).
			Op(op).
			Value(count).
			Detail("%d lockers reported, got %d clients, %d cookies, %d addresses",
				count, len(clientList), len(cookieList), len(addrList)).
			Build()
	}

	ls.Holders = make([]ForeignLock, count)
	for i := range ls.Holders {
		ls.Holders[i] = ForeignLock{
			Name:      name,
			Client:    clientList[i],
			Cookie:    cookieList[i],
			Address:   addrList[i],
			Tag:       ls.Tag,
			Exclusive: ls.Exclusive,
		}
	}
	return ls, nil
}
