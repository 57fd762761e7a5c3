// Package sheet turns catalog items into the contact sheet page model and
// renders it to HTML. The same model drives the live page served over HTTP
// and the self-contained page written into packed archives; only the link
// layout differs.
package sheet
