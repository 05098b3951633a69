package main

import "github.com/vvbbnn00/onedrive-index/cmd/odindex/cmd"

func main() {
	cmd.Execute()
}
