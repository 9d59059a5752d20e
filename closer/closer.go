/*
Package closer keeps the error from a deferred Close.
*/
package closer

import "io"

// ErrorHandler closes c, storing the error in *in unless *in already holds one.
//
//	defer closer.ErrorHandler(ch, &err)
func ErrorHandler(c io.Closer, in *error) {
	cerr := c.Close()
	if *in == nil {
		*in = cerr
	}
}

// Func adapts a close function to an io.Closer.
type Func func() error

func (f Func) Close() error {
	return f()
}
