package main

import "github.com/MeKo-Tech/roikit/cmd/roikit/cmd"

func main() {
	cmd.Execute()
}
