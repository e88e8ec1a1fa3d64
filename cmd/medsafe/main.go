package main

import "github.com/Skufu/medsafe/internal/cli"

func main() {
	cli.Main()
}
