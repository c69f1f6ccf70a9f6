// Package mocks provides testify mock implementations of the ports interfaces
package mocks

import (
	"github.com/stretchr/testify/mock"

	"hospitalsync/application/ports"
)

// MockLogger is a mock implementation of ports.Logger
type MockLogger struct {
	mock.Mock
}

// NewNopLogger returns a MockLogger that accepts every call
func NewNopLogger() *MockLogger {
	m := &MockLogger{}
	m.On("Debug", mock.Anything, mock.Anything).Maybe()
	m.On("Info", mock.Anything, mock.Anything).Maybe()
	m.On("Warn", mock.Anything, mock.Anything).Maybe()
	m.On("Error", mock.Anything, mock.Anything).Maybe()
	m.On("WithFields", mock.Anything).Return(m).Maybe()
	return m
}

// Debug mocks the Debug method
func (m *MockLogger) Debug(msg string, fields ...interface{}) {
	m.Called(msg, fields)
}

// Info mocks the Info method
func (m *MockLogger) Info(msg string, fields ...interface{}) {
	m.Called(msg, fields)
}

// Warn mocks the Warn method
func (m *MockLogger) Warn(msg string, fields ...interface{}) {
	m.Called(msg, fields)
}

// Error mocks the Error method
func (m *MockLogger) Error(msg string, fields ...interface{}) {
	m.Called(msg, fields)
}

// WithFields mocks the WithFields method
func (m *MockLogger) WithFields(fields map[string]interface{}) ports.Logger {
	args := m.Called(fields)
	if logger, ok := args.Get(0).(ports.Logger); ok {
		return logger
	}
	return m
}

// MockMetrics is a mock implementation of ports.Metrics
type MockMetrics struct {
	mock.Mock
}

// NewNopMetrics returns a MockMetrics that accepts every call
func NewNopMetrics() *MockMetrics {
	m := &MockMetrics{}
	m.On("IncrementCounter", mock.Anything, mock.Anything).Maybe()
	m.On("RecordHistogram", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("RecordGauge", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("WithTags", mock.Anything).Return(m).Maybe()
	return m
}

// IncrementCounter mocks the IncrementCounter method
func (m *MockMetrics) IncrementCounter(name string, tags map[string]string) {
	m.Called(name, tags)
}

// RecordHistogram mocks the RecordHistogram method
func (m *MockMetrics) RecordHistogram(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

// RecordGauge mocks the RecordGauge method
func (m *MockMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

// WithTags mocks the WithTags method
func (m *MockMetrics) WithTags(tags map[string]string) ports.Metrics {
	args := m.Called(tags)
	if metrics, ok := args.Get(0).(ports.Metrics); ok {
		return metrics
	}
	return m
}

// MockObservability is a mock implementation of ports.Observability
type MockObservability struct {
	mock.Mock
}

// Components mocks the Components method
func (m *MockObservability) Components() (ports.Logger, ports.Metrics, error) {
	args := m.Called()
	return loggerArg(args, 0), metricsArg(args, 1), args.Error(2)
}

// ComponentsScoped mocks the ComponentsScoped method
func (m *MockObservability) ComponentsScoped(component string) (ports.Logger, ports.Metrics, error) {
	args := m.Called(component)
	return loggerArg(args, 0), metricsArg(args, 1), args.Error(2)
}

// Flush mocks the Flush method
func (m *MockObservability) Flush() error {
	return m.Called().Error(0)
}

func loggerArg(args mock.Arguments, i int) ports.Logger {
	if l, ok := args.Get(i).(ports.Logger); ok {
		return l
	}
	return nil
}

func metricsArg(args mock.Arguments, i int) ports.Metrics {
	if mt, ok := args.Get(i).(ports.Metrics); ok {
		return mt
	}
	return nil
}
