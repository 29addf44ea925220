// Package must unwraps (value, error) pairs whose error can only be a
// programming mistake, such as a fixed CBOR encoder configuration.
package must

// Get returns v and panics if err is set.
func Get[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
