package telemetry

import (
	"fmt"
)

// API is an abstraction over logging/metrics so that tests can assert on what
// a component reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has broken in a way that should be addressed.
	//
	// The `id` should name the **component** that broke, not the specific line that broke.
	// ex. if the officers request fails inside the registry client, the id is
	// `client.fetch-officers` and the transport error goes in the params.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	//
	// Wrap the API in a ScopedAPI so ids only need to be `<struct>.<method>`.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a degraded result that is still usable, like an
	// unavailable record or a listing page that could not be fetched.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports some debug information that will be ignored in production
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current count of a specific event at the current time, these counts should
	// not be summed but interpreted as points of data over time.
	ReportCount(id string, count int64)
}

// ScopedAPI attaches a namespace to every id reported through it.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}

// Multi fans every report out to each of the given APIs in order.
type Multi []API

func (m Multi) ReportBroken(id string, params ...any) {
	for _, t := range m {
		t.ReportBroken(id, params...)
	}
}

func (m Multi) ReportWarning(id string, params ...any) {
	for _, t := range m {
		t.ReportWarning(id, params...)
	}
}

func (m Multi) ReportDebug(msg string, params ...any) {
	for _, t := range m {
		t.ReportDebug(msg, params...)
	}
}

func (m Multi) ReportCount(id string, count int64) {
	for _, t := range m {
		t.ReportCount(id, count)
	}
}
