// Package testutil provides hand-written mocks for package tests.
package testutil

import (
	"fmt"
	"sync"

	"github.com/numlink/numlink/internal/foreign"
)

// MockForeignService implements foreign.Service with scriptable
// behavior and an invocation recorder. Unset hooks fall back to inert
// defaults; tests that care about a path install the matching Func
// field. Safe for concurrent use.
type MockForeignService struct {
	mu       sync.Mutex
	recorded []string
	token    string
	closed   bool

	CallFunc      func(module, method string, args []interface{}, kwargs map[string]interface{}) (foreign.Result, error)
	GetFieldFunc  func(ref foreign.Ref, field string, kind foreign.FieldKind) (interface{}, error)
	GetValueFunc  func(ref foreign.Ref, expr foreign.IndexExpr) (foreign.Result, error)
	SetValueFunc  func(ref foreign.Ref, expr foreign.IndexExpr, value interface{}) error
	FreeArrayFunc func(ref foreign.Ref) error
	BufferFunc    func(ref foreign.Ref) (*foreign.BufferInfo, error)
}

// NewMockForeignService creates a mock with a fixed session token.
func NewMockForeignService() *MockForeignService {
	return &MockForeignService{token: "mock-session"}
}

func (m *MockForeignService) record(op string) {
	m.mu.Lock()
	m.recorded = append(m.recorded, op)
	m.mu.Unlock()
}

// Calls returns a copy of the recorded invocations in order.
func (m *MockForeignService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.recorded...)
}

// CallCount returns the number of recorded invocations.
func (m *MockForeignService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

// Reset clears the invocation record.
func (m *MockForeignService) Reset() {
	m.mu.Lock()
	m.recorded = nil
	m.mu.Unlock()
}

// Closed reports whether Close has been called.
func (m *MockForeignService) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockForeignService) Initialize() error {
	m.record("Initialize")
	return nil
}

func (m *MockForeignService) Token() string {
	return m.token
}

func (m *MockForeignService) Call(module, method string, args []interface{}, kwargs map[string]interface{}) (foreign.Result, error) {
	m.record(fmt.Sprintf("Call:%s.%s", module, method))
	if m.CallFunc != nil {
		return m.CallFunc(module, method, args, kwargs)
	}
	return foreign.Result{Kind: foreign.KindNone}, nil
}

func (m *MockForeignService) GetField(ref foreign.Ref, field string, kind foreign.FieldKind) (interface{}, error) {
	m.record(fmt.Sprintf("GetField:%s", field))
	if m.GetFieldFunc != nil {
		return m.GetFieldFunc(ref, field, kind)
	}
	return nil, &foreign.ForeignError{TypeName: "LookupError", Message: fmt.Sprintf("mock: field %q not scripted", field)}
}

func (m *MockForeignService) GetValue(ref foreign.Ref, expr foreign.IndexExpr) (foreign.Result, error) {
	m.record("GetValue")
	if m.GetValueFunc != nil {
		return m.GetValueFunc(ref, expr)
	}
	return foreign.Result{Kind: foreign.KindNone}, nil
}

func (m *MockForeignService) SetValue(ref foreign.Ref, expr foreign.IndexExpr, value interface{}) error {
	m.record("SetValue")
	if m.SetValueFunc != nil {
		return m.SetValueFunc(ref, expr, value)
	}
	return nil
}

func (m *MockForeignService) FreeArray(ref foreign.Ref) error {
	m.record(fmt.Sprintf("FreeArray:%d", ref))
	if m.FreeArrayFunc != nil {
		return m.FreeArrayFunc(ref)
	}
	return nil
}

func (m *MockForeignService) Buffer(ref foreign.Ref) (*foreign.BufferInfo, error) {
	m.record("Buffer")
	if m.BufferFunc != nil {
		return m.BufferFunc(ref)
	}
	return nil, &foreign.ForeignError{TypeName: "LookupError", Message: "mock: buffer not scripted"}
}

func (m *MockForeignService) Close() error {
	m.record("Close")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
