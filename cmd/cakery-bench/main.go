// Package main is the entry point for cakery-bench.
package main

import (
	"cakery-bench/cmd/cakery-bench/cmd"
)

func main() {
	cmd.Execute()
}
