package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// classMemoryLimitPages caps the linear memory of WASM classes (16MB).
const classMemoryLimitPages = 256

// ClassMethod is an object class method. It returns the output and a status;
// a negative status fails the call and discards every change made through m.
type ClassMethod func(m *MethodContext, in []byte) (out []byte, rc int)

// MethodContext is the object a class method runs on. Changes become visible
// only when the method succeeds.
type MethodContext struct {
	obj    *object
	exists bool
	dirty  bool
}

// Exists reports whether the object exists.
func (m *MethodContext) Exists() bool {
	return m.exists || m.dirty
}

// Read returns the object data.
func (m *MethodContext) Read() []byte {
	if m.obj == nil {
		return nil
	}
	return append([]byte(nil), m.obj.data...)
}

// WriteFull replaces the object data, creating the object if needed.
func (m *MethodContext) WriteFull(data []byte) {
	m.ensure()
	m.obj.data = append([]byte(nil), data...)
}

// GetXattr returns an extended attribute.
func (m *MethodContext) GetXattr(name string) ([]byte, bool) {
	if m.obj == nil {
		return nil, false
	}
	v, ok := m.obj.xattrs[name]
	return v, ok
}

// SetXattr sets an extended attribute, creating the object if needed.
func (m *MethodContext) SetXattr(name string, value []byte) {
	m.ensure()
	m.obj.xattrs[name] = append([]byte(nil), value...)
}

func (m *MethodContext) ensure() {
	if m.obj == nil {
		m.obj = newObject()
	}
	m.dirty = true
}

type wasmClass struct {
	mod    api.Module
	logger *zap.Logger
	mu     sync.Mutex
}

type classes struct {
	logger  *zap.Logger
	runtime wazero.Runtime
	methods map[string]map[string]ClassMethod
	modules []*wasmClass
	mu      sync.RWMutex
}

func newClasses(logger *zap.Logger) *classes {
	return &classes{
		logger:  logger,
		methods: make(map[string]map[string]ClassMethod),
	}
}

func (c *classes) register(class, method string, fn ClassMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.methods[class] == nil {
		c.methods[class] = make(map[string]ClassMethod)
	}
	c.methods[class][method] = fn
}

func (c *classes) lookup(class, method string) (ClassMethod, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	methods, ok := c.methods[class]
	if !ok {
		return nil, errno(unix.EOPNOTSUPP)
	}
	fn, ok := methods[method]
	if !ok {
		return nil, errno(unix.EOPNOTSUPP)
	}
	return fn, 0
}

func (c *classes) close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runtime == nil {
		return nil
	}
	err := c.runtime.Close(ctx)
	c.runtime = nil
	c.modules = nil
	return err
}

// RegisterClass adds a Go object class method.
func (s *Sim) RegisterClass(class, method string, fn ClassMethod) {
	s.classes.register(class, method, fn)
}

// RegisterWASM compiles a WebAssembly module and registers each exported
// function of type (i32) -> i32 as a method of class.
//
// A method is called with the input length; the input sits at offset 0 of the
// exported memory. It writes its output at offset 0 and returns the output
// length, or a negative status.
func (s *Sim) RegisterWASM(ctx context.Context, class string, bin []byte) ([]string, error) {
	c := s.classes
	c.mu.Lock()
	if c.runtime == nil {
		cfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(classMemoryLimitPages)
		c.runtime = wazero.NewRuntimeWithConfig(ctx, cfg)
	}
	rt := c.runtime
	c.mu.Unlock()

	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("compile class %s: %w", class, err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("instantiate class %s: %w", class, err)
	}
	if mod.Memory() == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("class %s exports no memory", class)
	}

	wc := &wasmClass{mod: mod, logger: c.logger.With(zap.String("class", class))}
	var methods []string
	for name, def := range compiled.ExportedFunctions() {
		params, results := def.ParamTypes(), def.ResultTypes()
		if len(params) != 1 || params[0] != api.ValueTypeI32 ||
			len(results) != 1 || results[0] != api.ValueTypeI32 {
			continue
		}
		s.classes.register(class, name, wc.method(name))
		methods = append(methods, name)
	}

	c.mu.Lock()
	c.modules = append(c.modules, wc)
	c.mu.Unlock()

	s.logger.Debug("wasm class registered",
		zap.String("class", class),
		zap.Strings("methods", methods))
	return methods, nil
}

func (wc *wasmClass) method(name string) ClassMethod {
	return func(_ *MethodContext, in []byte) ([]byte, int) {
		wc.mu.Lock()
		defer wc.mu.Unlock()

		ctx := context.Background()
		mem := wc.mod.Memory()
		if need := uint32(len(in)); need > mem.Size() {
			pages := (need - mem.Size() + 65535) / 65536
			if _, ok := mem.Grow(pages); !ok {
				return nil, errno(unix.E2BIG)
			}
		}
		if !mem.Write(0, in) {
			return nil, errno(unix.EFAULT)
		}

		fn := wc.mod.ExportedFunction(name)
		results, err := fn.Call(ctx, uint64(len(in)))
		if err != nil {
			wc.logger.Warn("class method failed", zap.String("method", name), zap.Error(err))
			return nil, errno(unix.EIO)
		}
		rc := int32(uint32(results[0]))
		if rc < 0 {
			return nil, int(rc)
		}
		out, ok := mem.Read(0, uint32(rc))
		if !ok {
			return nil, errno(unix.EFAULT)
		}
		return append([]byte(nil), out...), 0
	}
}

func greeting(in []byte) (string, int) {
	if len(in) > 100 {
		return "", errno(unix.EINVAL)
	}
	name := "world"
	if len(in) > 0 {
		name = string(in)
	}
	return "Hello, " + name + "!", 0
}

// registerHello installs the "hello" example class.
func registerHello(c *classes) {
	c.register("hello", "say_hello", func(_ *MethodContext, in []byte) ([]byte, int) {
		msg, rc := greeting(in)
		if rc != 0 {
			return nil, rc
		}
		return []byte(msg), 0
	})
	c.register("hello", "record_hello", func(m *MethodContext, in []byte) ([]byte, int) {
		msg, rc := greeting(in)
		if rc != 0 {
			return nil, rc
		}
		if m.Exists() && len(m.Read()) > 0 {
			return nil, errno(unix.EEXIST)
		}
		m.WriteFull([]byte(msg))
		return nil, 0
	})
	c.register("hello", "replay", func(m *MethodContext, _ []byte) ([]byte, int) {
		if !m.Exists() {
			return nil, errno(unix.ENOENT)
		}
		return m.Read(), 0
	})
	c.register("hello", "turn_it_to_11", func(m *MethodContext, _ []byte) ([]byte, int) {
		if !m.Exists() {
			return nil, errno(unix.ENOENT)
		}
		m.WriteFull([]byte(strings.ToUpper(string(m.Read()))))
		return nil, 0
	})
}
