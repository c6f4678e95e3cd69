package foreign

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/numlink/numlink/internal/engine"
	"github.com/numlink/numlink/internal/events"
	"github.com/numlink/numlink/internal/metrics"
	"github.com/numlink/numlink/pkg/logger"
)

// KernelModule is the engine module hosting the ndkernel entry points.
const KernelModule = "nd"

// Gateway implements Service over the embedded engine. It does not
// manage reference counts itself; handle constructors and destructors
// drive FreeArray.
type Gateway struct {
	eng     *engine.Engine
	log     *logger.Logger
	metrics metrics.MetricsCollector
	events  events.Logger
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Engine  *engine.Engine
	Logger  *logger.Logger
	Metrics metrics.MetricsCollector
	Events  events.Logger
}

// NewGateway creates a gateway over the given engine.
func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("gateway")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoOpCollector()
	}
	if cfg.Events == nil {
		cfg.Events = events.NoOpLogger{}
	}
	return &Gateway{
		eng:     cfg.Engine,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		events:  cfg.Events,
	}
}

// Initialize starts the underlying engine.
func (g *Gateway) Initialize() error {
	if err := g.eng.Initialize(); err != nil {
		return err
	}
	g.events.Log(events.Event{
		Type:     events.EventSessionInitialized,
		Severity: events.SeverityInfo,
		Session:  g.eng.Token(),
		Message:  "engine session initialized",
	})
	return nil
}

// Token returns the engine session token.
func (g *Gateway) Token() string {
	return g.eng.Token()
}

// Close shuts the engine down.
func (g *Gateway) Close() error {
	err := g.eng.Close()
	g.events.Log(events.Event{
		Type:     events.EventSessionClosed,
		Severity: events.SeverityInfo,
		Message:  "engine session closed",
	})
	return err
}

// Call invokes module.method with the given positional and keyword
// arguments under the global execution lock.
func (g *Gateway) Call(module, method string, args []interface{}, kwargs map[string]interface{}) (Result, error) {
	start := time.Now()
	var res Result

	err := g.eng.Do(func(vm *goja.Runtime) error {
		this, fn, err := lookup(vm, module, method)
		if err != nil {
			return err
		}

		jsArgs := make([]goja.Value, 0, len(args)+1)
		for _, a := range args {
			v, err := toEngineValue(vm, a)
			if err != nil {
				return err
			}
			jsArgs = append(jsArgs, v)
		}
		if len(kwargs) > 0 {
			jsArgs = append(jsArgs, vm.ToValue(kwargs))
		}

		out, err := fn(this, jsArgs...)
		if err != nil {
			return asForeignError(err)
		}

		res, err = tagResult(out)
		return err
	})

	g.metrics.RecordCall(module, method, time.Since(start), err)
	if err != nil {
		g.events.Log(events.Event{
			Type:     events.EventCallFailed,
			Severity: events.SeverityError,
			Session:  g.eng.Token(),
			Module:   module,
			Method:   method,
			Error:    err.Error(),
		})
	} else {
		g.events.Log(events.Event{
			Type:     events.EventCallInvoked,
			Severity: events.SeverityDebug,
			Session:  g.eng.Token(),
			Module:   module,
			Method:   method,
		})
	}
	return res, err
}

// metadataFields maps field names to kernel accessors. Only these
// fields may be read through GetField.
var metadataFields = map[string]bool{
	"shape":    true,
	"strides":  true,
	"itemsize": true,
	"size":     true,
	"ndim":     true,
	"dtype":    true,
}

// GetField reads a metadata attribute off an array reference.
func (g *Gateway) GetField(ref Ref, field string, kind FieldKind) (interface{}, error) {
	if !metadataFields[field] {
		return nil, &ForeignError{TypeName: "LookupError", Message: fmt.Sprintf("unknown field %q", field)}
	}

	res, err := g.Call(KernelModule, field, []interface{}{int64(ref)}, nil)
	if err != nil {
		return nil, err
	}

	switch kind {
	case FieldInt:
		return res.Int()
	case FieldString:
		return res.Str()
	case FieldIntSlice:
		seq, ok := res.Value.([]interface{})
		if !ok {
			return nil, &ConversionError{SourceType: typeName(res.Value), TargetType: "[]int64"}
		}
		out := make([]int64, len(seq))
		for i, e := range seq {
			n, err := Result{Kind: KindScalar, Value: e}.Int()
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, &ConversionError{SourceType: "field", TargetType: fmt.Sprintf("kind(%d)", kind)}
}

// GetValue resolves an index expression.
func (g *Gateway) GetValue(ref Ref, expr IndexExpr) (Result, error) {
	return g.Call(KernelModule, "getitem", []interface{}{int64(ref), encodeExpr(expr)}, nil)
}

// SetValue assigns into an indexed selection.
func (g *Gateway) SetValue(ref Ref, expr IndexExpr, value interface{}) error {
	v, err := encodeAssignValue(value)
	if err != nil {
		return err
	}
	_, err = g.Call(KernelModule, "setitem", []interface{}{int64(ref), encodeExpr(expr), v}, nil)
	return err
}

// FreeArray releases one reference count. Release goes through the
// serialized call path because it enters the engine's deallocation
// machinery.
func (g *Gateway) FreeArray(ref Ref) error {
	_, err := g.Call(KernelModule, "release", []interface{}{int64(ref)}, nil)
	if err != nil {
		return err
	}
	g.metrics.RecordHandleReleased()
	g.events.Log(events.Event{
		Type:     events.EventHandleReleased,
		Severity: events.SeverityDebug,
		Session:  g.eng.Token(),
		Ref:      int64(ref),
	})
	return nil
}

// Buffer exposes the engine-owned backing buffer for ref.
func (g *Gateway) Buffer(ref Ref) (*BufferInfo, error) {
	var info *BufferInfo

	err := g.eng.Do(func(vm *goja.Runtime) error {
		this, fn, err := lookup(vm, KernelModule, "bufinfo")
		if err != nil {
			return err
		}
		out, err := fn(this, vm.ToValue(int64(ref)))
		if err != nil {
			return asForeignError(err)
		}

		fields, ok := out.Export().(map[string]interface{})
		if !ok {
			return &ConversionError{SourceType: "bufinfo result", TargetType: "object"}
		}
		ab, ok := fields["buffer"].(goja.ArrayBuffer)
		if !ok {
			return &ConversionError{SourceType: typeName(fields["buffer"]), TargetType: "ArrayBuffer"}
		}
		offset, err := (Result{Kind: KindScalar, Value: fields["offset"]}).Int()
		if err != nil {
			return err
		}
		length, err := (Result{Kind: KindScalar, Value: fields["length"]}).Int()
		if err != nil {
			return err
		}
		order, _ := fields["byteorder"].(string)

		info = &BufferInfo{
			Data:      ab.Bytes(), // shared with the engine, not a copy
			Offset:    int(offset),
			Length:    int(length),
			ByteOrder: order,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.metrics.RecordBufferView(info.Length)
	return info, nil
}

// --- conversion helpers ---

func lookup(vm *goja.Runtime, module, method string) (goja.Value, goja.Callable, error) {
	modVal := vm.Get(module)
	if modVal == nil || goja.IsUndefined(modVal) || goja.IsNull(modVal) {
		return nil, nil, &ForeignError{TypeName: "LookupError", Message: fmt.Sprintf("unknown module %q", module)}
	}
	modObj := modVal.ToObject(vm)

	fn, ok := goja.AssertFunction(modObj.Get(method))
	if !ok {
		return nil, nil, &ForeignError{TypeName: "LookupError", Message: fmt.Sprintf("%s.%s is not callable", module, method)}
	}
	return modObj, fn, nil
}

func toEngineValue(vm *goja.Runtime, v interface{}) (goja.Value, error) {
	switch x := v.(type) {
	case nil:
		return goja.Null(), nil
	case Ref:
		return vm.ToValue(map[string]interface{}{"__ndref": int64(x)}), nil
	case bool, int, int32, int64, float32, float64, string:
		return vm.ToValue(x), nil
	case []int, []int64, []float64, []string, []interface{}, map[string]interface{}:
		return vm.ToValue(x), nil
	}
	return nil, &ConversionError{SourceType: fmt.Sprintf("%T", v), TargetType: "engine value"}
}

func tagResult(out goja.Value) (Result, error) {
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return Result{Kind: KindNone}, nil
	}

	switch v := out.Export().(type) {
	case map[string]interface{}:
		if raw, ok := v["__ndref"]; ok {
			ref, err := (Result{Kind: KindScalar, Value: raw}).Int()
			if err != nil {
				return Result{}, err
			}
			return Result{Kind: KindArray, Ref: Ref(ref)}, nil
		}
		if raw, ok := v["__ndscalar"]; ok {
			return Result{Kind: KindScalar, Value: raw}, nil
		}
		return Result{}, &ConversionError{SourceType: "object", TargetType: "tagged result"}
	case int64, float64, bool, string:
		return Result{Kind: KindScalar, Value: v}, nil
	case []interface{}:
		// JS arrays export as native slices; metadata reads (shape,
		// strides) consume these through Result.Value.
		return Result{Kind: KindScalar, Value: v}, nil
	}
	return Result{}, &ConversionError{SourceType: fmt.Sprintf("%T", out.Export()), TargetType: "tagged result"}
}

func encodeExpr(expr IndexExpr) []interface{} {
	terms := make([]interface{}, len(expr))
	for i, t := range expr {
		switch t.Kind {
		case TermInt:
			terms[i] = map[string]interface{}{"k": "i", "v": t.Index}
		case TermList:
			terms[i] = map[string]interface{}{"k": "l", "v": t.List}
		case TermSlice:
			terms[i] = map[string]interface{}{
				"k":     "s",
				"start": optInt(t.Start),
				"stop":  optInt(t.Stop),
				"step":  optInt(t.Step),
			}
		}
	}
	return terms
}

func optInt(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func encodeAssignValue(value interface{}) (interface{}, error) {
	switch x := value.(type) {
	case Ref:
		return map[string]interface{}{"__ndref": int64(x)}, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		return x, nil
	}
	return nil, &ConversionError{SourceType: fmt.Sprintf("%T", value), TargetType: "assignable value"}
}

func asForeignError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		name := "Error"
		message := err.Error()
		if ex.Value() != nil {
			message = ex.Value().String()
		}
		if obj, ok := ex.Value().(*goja.Object); ok {
			if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
				name = n.String()
			}
			if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
				message = m.String()
			}
		}
		return &ForeignError{Message: message, TypeName: name}
	}
	return err
}
