//go:build !cgo

package features

const cgoEnabled = false
