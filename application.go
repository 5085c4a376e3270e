package rados

import (
	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/errors"
)

// Application is the tag of a client application on the pool of an I/O
// context, with its key/value metadata.
type Application struct {
	io   *IOContext
	name string
}

// Application returns the named application of the pool. No native call is
// made.
func (io *IOContext) Application(name string) *Application {
	return &Application{io: io, name: name}
}

// Applications lists the applications enabled on the pool.
func (io *IOContext) Applications() ([]string, error) {
	h, err := io.handle()
	if err != nil {
		return nil, err
	}
	const op = "rados_application_list"
	buf, n, err := buffer.Retry(io.env.initial(defaultNameSize), func(b *buffer.Buffer) int {
		return sized(b, func(n *int) int {
			return io.env.lib.ApplicationList(h, b.Bytes(), n)
		})
	}, io.env.retryOpts(errors.PhasePool, op)...)
	if err != nil {
		return nil, err
	}
	return buf.Strings(n, false), nil
}

// sized runs a call that takes the capacity of b by reference and returns
// the length it used.
func sized(b *buffer.Buffer, call func(n *int) int) int {
	n := b.Cap()
	if rc := call(&n); rc < 0 {
		return rc
	}
	return n
}

// Name returns the application name.
func (a *Application) Name() string {
	return a.name
}

// Enable tags the pool with the application. A pool that already has a
// different application needs force.
func (a *Application) Enable(force bool) error {
	h, err := a.io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhasePool, "rados_application_enable", a.io.env.lib.ApplicationEnable(h, a.name, force))
	return err
}

// Metadata returns the value stored under key.
func (a *Application) Metadata(key string) (string, error) {
	h, err := a.io.handle()
	if err != nil {
		return "", err
	}
	const op = "rados_application_metadata_get"
	buf, _, err := buffer.Retry(a.io.env.initial(defaultNameSize), func(b *buffer.Buffer) int {
		return sized(b, func(n *int) int {
			return a.io.env.lib.ApplicationMetadataGet(h, a.name, key, b.Bytes(), n)
		})
	}, a.io.env.retryOpts(errors.PhasePool, op)...)
	if err != nil {
		return "", err
	}
	return buf.CString(), nil
}

// SetMetadata stores value under key.
func (a *Application) SetMetadata(key, value string) error {
	h, err := a.io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhasePool, "rados_application_metadata_set", a.io.env.lib.ApplicationMetadataSet(h, a.name, key, value))
	return err
}

// RemoveMetadata removes key. Removing a missing key succeeds.
func (a *Application) RemoveMetadata(key string) error {
	h, err := a.io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhasePool, "rados_application_metadata_remove", a.io.env.lib.ApplicationMetadataRemove(h, a.name, key))
	return err
}

// MetadataList returns every metadata entry of the application.
func (a *Application) MetadataList() (map[string]string, error) {
	h, err := a.io.handle()
	if err != nil {
		return nil, err
	}
	const op = "rados_application_metadata_list"
	var keys, vals *buffer.Buffer
	var keysLen, valsLen int
	_, _, err = buffer.RetrySized(a.io.env.initial(defaultXattrSize), func(capacity int) int {
		keys, vals = buffer.New(capacity), buffer.New(capacity)
		keysLen, valsLen = capacity, capacity
		return a.io.env.lib.ApplicationMetadataList(h, a.name, keys.Bytes(), &keysLen, vals.Bytes(), &valsLen)
	}, a.io.env.retryOpts(errors.PhasePool, op)...)
	if err != nil {
		return nil, err
	}
	names, values := keys.Strings(keysLen, false), vals.Strings(valsLen, false)
	if len(names) != len(values) {
		return nil, errors.MalformedOutput(errors.PhasePool, op, "key and value counts differ")
	}
	out := make(map[string]string, len(names))
	for i, k := range names {
		out[k] = values[i]
	}
	return out, nil
}
