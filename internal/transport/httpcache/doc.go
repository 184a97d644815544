// Package httpcache talks to a cache exposed over HTTP, either as a plain
// REST resource tree or as an OData service.
//
// REST entries live at <uri><cache>/<key>. OData services (detected by a
// ".svc" segment in the URI) expose <cache>_put and <cache>_get functions that
// take the key as a quoted query parameter.
//
// Each Transport owns its own http.Client, so keep-alive connections are never
// shared between drivers. A 404 or an empty body on get means the key is
// absent; any other non-2xx reply and network errors are Transient.
package httpcache
