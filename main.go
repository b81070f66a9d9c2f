package main

import "github.com/niclabs/ecc-bench/cmd"

func main() {
	cmd.Execute()
}
