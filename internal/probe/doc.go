// Package probe checks whether a single image or video resource can be
// loaded and reports its natural dimensions.
//
// A probe never retries and never touches viewer state: callers decide what a
// failure means. Null resources ("" or "null") fail with ErrUnavailable
// without any network request.
package probe
