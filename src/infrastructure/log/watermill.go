package log

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-logr/logr"
)

// WatermillAdapter routes watermill router and pub/sub logs into a logr.Logger
type WatermillAdapter struct {
	l logr.Logger
}

// NewWatermillAdapter wraps l, or the global logger when l is the zero value
func NewWatermillAdapter(l logr.Logger) watermill.LoggerAdapter {
	if l.GetSink() == nil {
		l = logger
	}
	return &WatermillAdapter{l: l.WithName("watermill")}
}

func flatten(fields watermill.LogFields) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}

func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(err, msg, flatten(fields)...)
}

func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info(msg, flatten(fields)...)
}

func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.V(1).Info(msg, flatten(fields)...)
}

func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.V(2).Info(msg, flatten(fields)...)
}

func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{l: a.l.WithValues(flatten(fields)...)}
}
