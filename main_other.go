//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// Crash logging goes in before any CGO code runs.
	initCrashLog()

	// The hotkey backend needs the main OS thread.
	mainthread.Init(run)
}
