//go:build !linux

package cli

const defaultBackend = BackendTinygo
