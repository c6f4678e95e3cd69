// Package ndarray exposes native multi-dimensional array handles backed
// by memory owned and computed by the embedded numerical engine.
//
// The package implements the boundary protocol, not the math: shape and
// strides metadata is fetched lazily and cached, element data is shared
// zero-copy where the engine's buffer is exportable, and every handle
// coordinates a reference count held jointly with the engine. Bulk
// numerical operations are delegated through the foreign call gateway.
package ndarray

import (
	"errors"
	"sync"

	"github.com/numlink/numlink/internal/config"
	"github.com/numlink/numlink/internal/engine"
	"github.com/numlink/numlink/internal/events"
	"github.com/numlink/numlink/internal/foreign"
	"github.com/numlink/numlink/internal/metrics"
	"github.com/numlink/numlink/pkg/logger"
)

// Session owns one engine session and mints array handles bound to it.
// Handles are only valid within the session that created them.
type Session struct {
	svc     foreign.Service
	log     *logger.Logger
	metrics metrics.MetricsCollector
	events  events.Logger
	token   string
	strict  bool

	mu     sync.Mutex
	closed bool
}

// Config configures a Session. All fields are optional; zero values
// produce a session over a fresh embedded engine with configuration
// loaded from ConfigPath or defaults.
type Config struct {
	// ConfigPath points at a YAML configuration file.
	ConfigPath string

	// Service overrides the engine-backed gateway, mainly for tests.
	Service foreign.Service

	Logger  *logger.Logger
	Metrics metrics.MetricsCollector
	Events  events.Logger
}

// New creates and initializes a session.
func New(cfg Config) (*Session, error) {
	fileCfg := config.LoadOrDefault(cfg.ConfigPath)

	log := cfg.Logger
	if log == nil {
		log = logger.New(logger.Config{Component: "ndarray", Level: fileCfg.LogLevel})
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector(fileCfg.MetricsNamespace)
	}
	eventLog := cfg.Events
	if eventLog == nil {
		eventLog = events.NewRingBuffer(fileCfg.EventBufferSize)
	}

	svc := cfg.Service
	if svc == nil {
		eng := engine.New(engine.Config{Logger: log})
		svc = foreign.NewGateway(foreign.GatewayConfig{
			Engine:  eng,
			Logger:  log,
			Metrics: collector,
			Events:  eventLog,
		})
	}

	if err := svc.Initialize(); err != nil && !errors.Is(err, engine.ErrAlreadyInitialized) {
		return nil, err
	}

	return &Session{
		svc:     svc,
		log:     log,
		metrics: collector,
		events:  eventLog,
		token:   svc.Token(),
		strict:  fileCfg.StrictByteOrder,
	}, nil
}

// Token identifies the engine session.
func (s *Session) Token() string { return s.token }

// Events returns the session's interop event log.
func (s *Session) Events() events.Logger { return s.events }

// Close shuts the session down. Handles created from it become invalid.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.svc.Close()
}

// FromFloat64s creates an array from values reshaped to shape. With no
// shape the result is one-dimensional.
func (s *Session) FromFloat64s(values []float64, shape ...int) (*Array, error) {
	res, err := s.svc.Call(foreign.KernelModule, "create", []interface{}{values, shape}, nil)
	if err != nil {
		return nil, err
	}
	return s.wrap(res)
}

// Zeros creates a zero-filled float64 array of the given shape.
func (s *Session) Zeros(shape ...int) (*Array, error) {
	return s.ZerosTyped(Float64, shape...)
}

// ZerosTyped creates a zero-filled array with an explicit dtype.
func (s *Session) ZerosTyped(dt DType, shape ...int) (*Array, error) {
	if err := validDType(dt); err != nil {
		return nil, err
	}
	res, err := s.svc.Call(foreign.KernelModule, "zeros",
		[]interface{}{shape}, map[string]interface{}{"dtype": string(dt)})
	if err != nil {
		return nil, err
	}
	return s.wrap(res)
}

// Full creates an array of the given shape filled with value.
func (s *Session) Full(value float64, shape ...int) (*Array, error) {
	res, err := s.svc.Call(foreign.KernelModule, "full", []interface{}{shape, value}, nil)
	if err != nil {
		return nil, err
	}
	return s.wrap(res)
}

// Arange creates a one-dimensional array of 0..n-1.
func (s *Session) Arange(n int) (*Array, error) {
	res, err := s.svc.Call(foreign.KernelModule, "arange", []interface{}{n}, nil)
	if err != nil {
		return nil, err
	}
	return s.wrap(res)
}

// Invoke delegates an arbitrary named operation to the engine and wraps
// the result. Array arguments may be passed as *Array; they are
// translated to foreign references after a session check.
func (s *Session) Invoke(module, method string, args []interface{}, kwargs map[string]interface{}) (*Array, error) {
	encoded := make([]interface{}, len(args))
	for i, a := range args {
		v, err := s.encodeArg(a)
		if err != nil {
			return nil, err
		}
		encoded[i] = v
	}
	res, err := s.svc.Call(module, method, encoded, kwargs)
	if err != nil {
		return nil, err
	}
	if res.Kind == foreign.KindNone {
		return nil, nil
	}
	return s.wrap(res)
}

func (s *Session) encodeArg(a interface{}) (interface{}, error) {
	arr, ok := a.(*Array)
	if !ok {
		return a, nil
	}
	if arr.isScalar {
		return arr.scalar, nil
	}
	if arr.token != s.token {
		return nil, &IllegalStateError{
			Op:     "invoke",
			Reason: "array handle belongs to a different engine session",
		}
	}
	ref, err := arr.liveRef("invoke")
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// wrap converts a tagged call result into an array handle. Numeric
// scalars carry their value; booleans map to 1 and 0. String results
// are not representable as handles and fail with ConversionError.
func (s *Session) wrap(res foreign.Result) (*Array, error) {
	switch res.Kind {
	case foreign.KindArray:
		s.metrics.RecordHandleCreated("array")
		s.events.Log(events.Event{
			Type:     events.EventHandleCreated,
			Severity: events.SeverityDebug,
			Session:  s.token,
			Ref:      int64(res.Ref),
		})
		return &Array{sess: s, ref: res.Ref, token: s.token}, nil
	case foreign.KindScalar:
		var v float64
		switch x := res.Value.(type) {
		case bool:
			if x {
				v = 1
			}
		default:
			f, err := res.Float()
			if err != nil {
				return nil, err
			}
			v = f
		}
		s.metrics.RecordHandleCreated("scalar")
		return &Array{sess: s, isScalar: true, scalar: v, token: s.token}, nil
	}
	return nil, &ConversionError{SourceType: "none", TargetType: "array handle"}
}
