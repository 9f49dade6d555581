//go:build linux

package main

func main() {
	// Crash logging goes in before any CGO code runs.
	initCrashLog()
	run()
}
