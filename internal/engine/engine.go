// Package engine hosts the embedded numerical runtime.
//
// The runtime is a goja JavaScript VM loaded with the ndkernel library
// (engine.js). The kernel owns all array memory and performs all
// numerical computation; the rest of numlink only coordinates the
// boundary. The VM is not safe for concurrent entry, so every call into
// it goes through a single global execution lock.
package engine

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/numlink/numlink/pkg/logger"
)

//go:embed engine.js
var kernelSource string

var (
	// ErrNotInitialized is returned when the engine is entered before
	// Initialize succeeded. No operation may proceed in this state.
	ErrNotInitialized = errors.New("engine: not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("engine: already initialized")

	// ErrClosed is returned when the engine has been shut down.
	ErrClosed = errors.New("engine: closed")
)

// Manifest describes the embedded kernel library as reported by the
// kernel itself at initialization.
type Manifest struct {
	Name      string
	Version   string
	ByteOrder string // "<" little-endian, ">" big-endian
	DTypes    []string
}

// Engine wraps a goja VM hosting the ndkernel library.
type Engine struct {
	mu          sync.Mutex // the global execution lock
	vm          *goja.Runtime
	initialized bool
	closed      bool
	token       string
	manifest    Manifest
	log         *logger.Logger
}

// Config configures an Engine.
type Config struct {
	Logger *logger.Logger
}

// New creates an engine. It must be initialized before use.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("engine")
	}
	return &Engine{log: cfg.Logger}
}

// Initialize loads the kernel library into a fresh VM and reads its
// manifest. It must succeed exactly once before any other call; a
// second call returns ErrAlreadyInitialized.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.initialized {
		return ErrAlreadyInitialized
	}

	vm := goja.New()
	if _, err := vm.RunScript("engine.js", kernelSource); err != nil {
		return fmt.Errorf("engine: failed to load kernel library: %w", err)
	}

	manifest, err := readManifest(vm)
	if err != nil {
		return err
	}

	e.vm = vm
	e.manifest = manifest
	e.token = uuid.New().String()
	e.initialized = true

	e.log.WithField("engine", manifest.Name).
		WithField("version", manifest.Version).
		WithField("byteorder", manifest.ByteOrder).
		WithField("session", e.token).
		Info("numerical engine initialized")

	return nil
}

func readManifest(vm *goja.Runtime) (Manifest, error) {
	ndVal := vm.Get("nd")
	if ndVal == nil || goja.IsUndefined(ndVal) {
		return Manifest{}, errors.New("engine: kernel library did not define nd")
	}
	ndObj := ndVal.ToObject(vm)

	fn, ok := goja.AssertFunction(ndObj.Get("manifest"))
	if !ok {
		return Manifest{}, errors.New("engine: kernel library has no manifest")
	}

	raw, err := fn(ndObj)
	if err != nil {
		return Manifest{}, fmt.Errorf("engine: manifest call failed: %w", err)
	}

	doc := raw.String()
	if !gjson.Valid(doc) {
		return Manifest{}, errors.New("engine: kernel manifest is not valid JSON")
	}

	m := Manifest{
		Name:      gjson.Get(doc, "name").String(),
		Version:   gjson.Get(doc, "version").String(),
		ByteOrder: gjson.Get(doc, "byteorder").String(),
	}
	gjson.Get(doc, "dtypes").ForEach(func(_, v gjson.Result) bool {
		m.DTypes = append(m.DTypes, v.String())
		return true
	})

	if m.Name == "" || m.ByteOrder == "" {
		return Manifest{}, errors.New("engine: kernel manifest missing required fields")
	}
	return m, nil
}

// Token returns the session token minted at initialization. Handles
// created through this engine carry the token as their context token.
func (e *Engine) Token() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// Manifest returns the kernel manifest.
func (e *Engine) Manifest() Manifest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manifest
}

// Do runs fn with the global execution lock held. All entries into the
// VM, including release of foreign references, must go through here.
func (e *Engine) Do(fn func(vm *goja.Runtime) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.initialized {
		return ErrNotInitialized
	}
	return fn(e.vm)
}

// Close shuts the engine down. Subsequent entries fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.initialized = false
	e.vm = nil
	e.log.Info("numerical engine closed")
	return nil
}
